package podometre

import (
	"context"
)

type Service interface {
	Ingest(ctx context.Context, req IngestRequest) (*Snapshot, error)
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Snapshot, error)
	GetSession(sessionID string) (*Snapshot, error)
	ListSessions() []SessionSummary
	DeleteSession(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string, limit int) ([]EstimateRecord, error)
	Stats(ctx context.Context) (Stats, error)
	Settings() Settings
	Close() error
}

type HistoryStore interface {
	Record(ctx context.Context, rec EstimateRecord) error
	List(ctx context.Context, sessionID string, limit int) ([]EstimateRecord, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
