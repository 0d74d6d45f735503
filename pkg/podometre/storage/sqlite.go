package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN keeps the history inside the process. Nothing reaches disk.
const MemoryDSN = ":memory:"

const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Estimate is one analysis outcome as stored in the history table.
type Estimate struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SessionID  string    `gorm:"type:varchar(128);index:idx_session_time,priority:1" json:"session_id"`
	Elapsed    float64   `json:"elapsed"`
	SampleRate int       `json:"sample_rate"`
	WindowSize int       `json:"window_size"`
	BufferLen  int       `json:"buffer_len"`
	Bin        int       `json:"dominant_bin"`
	Frequency  float64   `json:"dominant_frequency"`
	Magnitude  float64   `json:"magnitude"`
	Steps      int       `json:"steps"`
	Status     string    `gorm:"type:varchar(16);index:idx_status" json:"status"`
	CreatedAt  time.Time `gorm:"index:idx_session_time,priority:2"`
}

func isMemory(dsn string) bool {
	return dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")
}

// NewDBClientWithPath opens the history database. An empty path selects
// MemoryDSN.
func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dbPath == "" {
		dbPath = MemoryDSN
	}

	dsn := dbPath
	if !isMemory(dbPath) {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating db dir: %w", err)
			}
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)"
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	if isMemory(dbPath) {
		// every new connection would see its own empty database
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(&Estimate{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) InsertEstimate(ctx context.Context, e *Estimate) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := c.DB.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("inserting estimate: %w", err)
	}
	return nil
}

// ListEstimates returns the newest estimates of a session first. limit <= 0
// returns everything.
func (c *DBClient) ListEstimates(ctx context.Context, sessionID string, limit int) ([]Estimate, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Estimate
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying estimates: %w", err)
	}
	return rows, nil
}

func (c *DBClient) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	res := c.DB.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&Estimate{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting estimates: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (c *DBClient) CountEstimates(ctx context.Context) (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.WithContext(ctx).Model(&Estimate{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting estimates: %w", err)
	}
	return count, nil
}

// CountByStatus groups the stored estimates by status.
func (c *DBClient) CountByStatus(ctx context.Context) (map[string]int64, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []struct {
		Status string
		Total  int64
	}
	err := c.DB.WithContext(ctx).
		Model(&Estimate{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting estimates by status: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}
