package podometre

import (
	"context"

	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
	"github.com/himanishpuri/Podometre/pkg/podometre/storage"
)

// historyAdapter adapts storage.DBClient to the HistoryStore interface.
type historyAdapter struct {
	db *storage.DBClient
}

// NewSQLiteHistory opens a sqlite backed estimate history. An empty path or
// storage.MemoryDSN keeps it in memory.
func NewSQLiteHistory(dbPath string) (HistoryStore, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &historyAdapter{db: db}, nil
}

func (h *historyAdapter) Record(ctx context.Context, rec EstimateRecord) error {
	row := &storage.Estimate{
		SessionID:  rec.SessionID,
		Elapsed:    rec.Elapsed,
		SampleRate: rec.SampleRate,
		WindowSize: rec.WindowSize,
		BufferLen:  rec.BufferLen,
		Bin:        rec.DominantBin,
		Frequency:  rec.Frequency,
		Magnitude:  rec.Magnitude,
		Steps:      rec.Steps,
		Status:     string(rec.Status),
		CreatedAt:  rec.CreatedAt,
	}
	return h.db.InsertEstimate(ctx, row)
}

func (h *historyAdapter) List(ctx context.Context, sessionID string, limit int) ([]EstimateRecord, error) {
	rows, err := h.db.ListEstimates(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]EstimateRecord, len(rows))
	for i, r := range rows {
		out[i] = EstimateRecord{
			SessionID:   r.SessionID,
			Elapsed:     r.Elapsed,
			SampleRate:  r.SampleRate,
			WindowSize:  r.WindowSize,
			BufferLen:   r.BufferLen,
			DominantBin: r.Bin,
			Frequency:   r.Frequency,
			Magnitude:   r.Magnitude,
			Steps:       r.Steps,
			Status:      cadence.Status(r.Status),
			CreatedAt:   r.CreatedAt,
		}
	}
	return out, nil
}

func (h *historyAdapter) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := h.db.DeleteSession(ctx, sessionID)
	return err
}

func (h *historyAdapter) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return h.db.CountByStatus(ctx)
}

func (h *historyAdapter) Close() error {
	return h.db.Close()
}
