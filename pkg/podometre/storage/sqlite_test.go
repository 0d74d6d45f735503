package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// setupTestDB creates an in-memory history database
func setupTestDB(t *testing.T) *DBClient {
	t.Helper()

	client, err := NewDBClientWithPath(MemoryDSN)
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func insert(t *testing.T, c *DBClient, sessionID string, steps int, status string) {
	t.Helper()
	e := &Estimate{
		SessionID:  sessionID,
		Elapsed:    10.24,
		SampleRate: 100,
		WindowSize: 1024,
		BufferLen:  1024,
		Bin:        20,
		Frequency:  1.953125,
		Steps:      steps,
		Status:     status,
	}
	if err := c.InsertEstimate(context.Background(), e); err != nil {
		t.Fatalf("InsertEstimate failed: %v", err)
	}
	if e.ID == 0 {
		t.Error("Expected non-zero estimate ID after insert")
	}
}

func TestNewDBClientMemory(t *testing.T) {
	client := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}
}

func TestNewDBClientWithFilePath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "history.sqlite3")

	client, err := NewDBClientWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to create DB with file path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestListEstimatesNewestFirst(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()

	insert(t, client, "walk-1", 10, "ready")
	insert(t, client, "walk-1", 20, "ready")
	insert(t, client, "walk-1", 30, "ready")
	insert(t, client, "walk-2", 99, "ready")

	rows, err := client.ListEstimates(ctx, "walk-1", 0)
	if err != nil {
		t.Fatalf("ListEstimates failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 estimates, got %d", len(rows))
	}
	if rows[0].Steps != 30 || rows[2].Steps != 10 {
		t.Errorf("Expected newest first, got steps %d..%d", rows[0].Steps, rows[2].Steps)
	}

	rows, err = client.ListEstimates(ctx, "walk-1", 2)
	if err != nil {
		t.Fatalf("ListEstimates with limit failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected 2 estimates with limit, got %d", len(rows))
	}
}

func TestDeleteSession(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()

	insert(t, client, "walk-1", 10, "ready")
	insert(t, client, "walk-1", 0, "no_signal")
	insert(t, client, "walk-2", 5, "ready")

	deleted, err := client.DeleteSession(ctx, "walk-1")
	if err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted rows, got %d", deleted)
	}

	count, err := client.CountEstimates(ctx)
	if err != nil {
		t.Fatalf("CountEstimates failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 remaining estimate, got %d", count)
	}
}

func TestCountByStatus(t *testing.T) {
	client := setupTestDB(t)

	insert(t, client, "walk-1", 10, "ready")
	insert(t, client, "walk-1", 0, "no_signal")
	insert(t, client, "walk-2", 12, "ready")

	counts, err := client.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts["ready"] != 2 {
		t.Errorf("Expected 2 ready estimates, got %d", counts["ready"])
	}
	if counts["no_signal"] != 1 {
		t.Errorf("Expected 1 no_signal estimate, got %d", counts["no_signal"])
	}
}

func TestNilClient(t *testing.T) {
	var c *DBClient

	if err := c.Close(); err != nil {
		t.Errorf("Expected nil error closing nil client, got %v", err)
	}
	if err := c.InsertEstimate(context.Background(), &Estimate{}); err == nil {
		t.Error("Expected error inserting with nil client")
	}
	if _, err := c.ListEstimates(context.Background(), "x", 1); err == nil {
		t.Error("Expected error listing with nil client")
	}
}
