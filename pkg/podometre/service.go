package podometre

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/himanishpuri/Podometre/pkg/logger"
	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
	"github.com/himanishpuri/Podometre/pkg/podometre/session"
)

// podometreService is the default implementation of the Service interface.
// The registry lock only guards the map; each session serializes its own
// batches.
type podometreService struct {
	mu       sync.RWMutex
	sessions map[string]*session.State

	history HistoryStore
	log     Logger
	config  *Config

	batches  atomic.Uint64
	analyses atomic.Uint64
	noSignal atomic.Uint64
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	if err := cfg.params().Validate(); err != nil {
		return nil, err
	}

	var history HistoryStore
	switch {
	case cfg.NoHistory:
	case cfg.History != nil:
		history = cfg.History
	default:
		var err error
		history, err = NewSQLiteHistory(cfg.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	return &podometreService{
		sessions: make(map[string]*session.State),
		history:  history,
		log:      cfg.Logger,
		config:   cfg,
	}, nil
}

// Ingest validates req, then applies it to the named session, creating the
// session with the service defaults on first use.
func (s *podometreService) Ingest(ctx context.Context, req IngestRequest) (*Snapshot, error) {
	if err := req.Validate(s.config.ElapsedMode); err != nil {
		return nil, err
	}
	if err := req.checkConfig(); err != nil {
		return nil, err
	}

	st, err := s.getOrCreate(req.SessionID)
	if err != nil {
		return nil, err
	}

	snap, out, err := st.Ingest(req.batch())
	if err != nil {
		return nil, err
	}
	s.batches.Add(1)

	if out.Analyzed {
		s.analyses.Add(1)
		est := out.Estimate
		s.log.Debugf("session=%s bin=%d magnitude=%.4f frequency=%.4f steps=%d",
			snap.ID, est.DominantBin, est.Magnitude, est.Frequency, est.Steps)
		if est.Status == cadence.StatusNoSignal {
			s.noSignal.Add(1)
		}
		s.record(ctx, &snap, out)
	}

	return &snap, nil
}

// record stores an analysis in the history. Failures are logged, the
// estimate has already been applied.
func (s *podometreService) record(ctx context.Context, snap *Snapshot, out session.Outcome) {
	if s.history == nil {
		return
	}
	rec := EstimateRecord{
		SessionID:   snap.ID,
		Elapsed:     snap.Elapsed,
		SampleRate:  snap.SampleRate,
		WindowSize:  snap.WindowSize,
		BufferLen:   out.BufferLen,
		DominantBin: out.Estimate.DominantBin,
		Frequency:   out.Estimate.Frequency,
		Magnitude:   out.Estimate.Magnitude,
		Steps:       out.Estimate.Steps,
		Status:      out.Estimate.Status,
		CreatedAt:   snap.UpdatedAt,
	}
	if err := s.history.Record(ctx, rec); err != nil {
		s.log.Warnf("Failed to record estimate for session %s: %v", snap.ID, err)
	}
}

func (s *podometreService) getOrCreate(id string) (*session.State, error) {
	s.mu.RLock()
	st, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return st, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[id]; ok {
		return st, nil
	}
	return s.insertLocked(id, s.config.params())
}

func (s *podometreService) insertLocked(id string, p session.Params) (*session.State, error) {
	if limit := s.config.MaxSessions; limit > 0 && len(s.sessions) >= limit {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, limit)
	}
	st, err := session.New(id, p)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = st
	s.log.Infof("Created session %s (fs=%d, N=%d)", id, p.SampleRate, p.WindowSize)
	return st, nil
}

func (s *podometreService) CreateSession(ctx context.Context, req CreateSessionRequest) (*Snapshot, error) {
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = uuid.NewString()
	}

	p := s.config.params()
	if req.SampleRate != nil {
		p.SampleRate = *req.SampleRate
	}
	if req.WindowSize != nil {
		p.WindowSize = *req.WindowSize
	}
	if err := session.ValidateWindow(p.SampleRate, p.WindowSize); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	st, err := s.insertLocked(id, p)
	if err != nil {
		return nil, err
	}
	snap := st.Snapshot()
	return &snap, nil
}

func (s *podometreService) lookup(id string) (*session.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return st, nil
}

func (s *podometreService) GetSession(sessionID string) (*Snapshot, error) {
	st, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	snap := st.Snapshot()
	return &snap, nil
}

// ListSessions returns a summary of every session ordered by id.
func (s *podometreService) ListSessions() []SessionSummary {
	s.mu.RLock()
	states := make([]*session.State, 0, len(s.sessions))
	for _, st := range s.sessions {
		states = append(states, st)
	}
	s.mu.RUnlock()

	out := make([]SessionSummary, 0, len(states))
	for _, st := range states {
		snap := st.Snapshot()
		out = append(out, SessionSummary{
			ID:         snap.ID,
			SampleRate: snap.SampleRate,
			WindowSize: snap.WindowSize,
			BufferLen:  len(snap.Buffer),
			Steps:      snap.Steps,
			Status:     snap.Estimate.Status,
			Batches:    snap.Batches,
			UpdatedAt:  snap.UpdatedAt,
		})
	}
	slices.SortFunc(out, func(a, b SessionSummary) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// DeleteSession drops the session and its recorded history.
func (s *podometreService) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if s.history != nil {
		if err := s.history.DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete history: %w", err)
		}
	}
	s.log.Infof("Deleted session %s", sessionID)
	return nil
}

// History returns the newest recorded estimates of a live session first.
func (s *podometreService) History(ctx context.Context, sessionID string, limit int) ([]EstimateRecord, error) {
	if _, err := s.lookup(sessionID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []EstimateRecord{}, nil
	}
	return s.history.List(ctx, sessionID, limit)
}

func (s *podometreService) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()

	st := Stats{
		Sessions:       n,
		Batches:        s.batches.Load(),
		Analyses:       s.analyses.Load(),
		NoSignal:       s.noSignal.Load(),
		HistoryEnabled: s.history != nil,
	}
	if s.history != nil {
		counts, err := s.history.CountByStatus(ctx)
		if err != nil {
			return st, fmt.Errorf("failed to count history: %w", err)
		}
		st.HistoryCounts = counts
	}
	return st, nil
}

func (s *podometreService) Settings() Settings {
	return Settings{
		SampleRate:  s.config.SampleRate,
		WindowSize:  s.config.WindowSize,
		Band:        s.config.Band,
		ResetPolicy: s.config.ResetPolicy,
		ElapsedMode: s.config.ElapsedMode,
		MaxSessions: s.config.MaxSessions,
	}
}

func (s *podometreService) Close() error {
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}
