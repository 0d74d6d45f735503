package podometre

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
	"github.com/himanishpuri/Podometre/pkg/podometre/session"
	"github.com/himanishpuri/Podometre/pkg/podometre/signal"
)

var (
	ErrInvalidRequest  = session.ErrInvalidRequest
	ErrConfig          = session.ErrConfig
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrTooManySessions = errors.New("too many sessions")
)

// Snapshot is a consistent view of one session.
type Snapshot = session.Snapshot

// IngestRequest is one batch of vertical acceleration samples. Nil pointer
// fields were absent from the request; absent SampleRate/WindowSize keep the
// session's current values.
type IngestRequest struct {
	SessionID  string
	Elapsed    *float64
	SampleRate *int
	WindowSize *int
	Samples    []float64
}

// Validate checks request-level fields. Configuration values are checked
// separately so they can be reported as ErrConfig.
func (r *IngestRequest) Validate(mode session.ElapsedMode) error {
	if r.SessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}
	if r.Samples == nil {
		return fmt.Errorf("%w: samples are required", ErrInvalidRequest)
	}
	if r.Elapsed == nil {
		if mode == session.ElapsedSupplied {
			return fmt.Errorf("%w: elapsed time is required", ErrInvalidRequest)
		}
		return nil
	}
	if e := *r.Elapsed; math.IsNaN(e) || math.IsInf(e, 0) || e < 0 {
		return fmt.Errorf("%w: elapsed time must be a non-negative number, got %v", ErrInvalidRequest, e)
	}
	return nil
}

// checkConfig rejects explicit but invalid sample rate / window size values.
func (r *IngestRequest) checkConfig() error {
	if r.SampleRate == nil && r.WindowSize == nil {
		return nil
	}
	fs, n := 1, 1
	if r.SampleRate != nil {
		fs = *r.SampleRate
	}
	if r.WindowSize != nil {
		n = *r.WindowSize
	}
	return session.ValidateWindow(fs, n)
}

func (r *IngestRequest) batch() session.Batch {
	b := session.Batch{Samples: r.Samples}
	if r.Elapsed != nil {
		b.Elapsed = *r.Elapsed
	}
	if r.SampleRate != nil {
		b.SampleRate = *r.SampleRate
	}
	if r.WindowSize != nil {
		b.WindowSize = *r.WindowSize
	}
	return b
}

// CreateSessionRequest creates an empty session. An empty SessionID gets a
// generated UUID.
type CreateSessionRequest struct {
	SessionID  string
	SampleRate *int
	WindowSize *int
}

type SessionSummary struct {
	ID         string         `json:"id"`
	SampleRate int            `json:"sample_rate"`
	WindowSize int            `json:"window_size"`
	BufferLen  int            `json:"buffer_len"`
	Steps      int            `json:"steps"`
	Status     cadence.Status `json:"status"`
	Batches    uint64         `json:"batches"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// EstimateRecord is one entry of a session's estimate history.
type EstimateRecord struct {
	SessionID   string         `json:"session_id"`
	Elapsed     float64        `json:"elapsed"`
	SampleRate  int            `json:"sample_rate"`
	WindowSize  int            `json:"window_size"`
	BufferLen   int            `json:"buffer_len"`
	DominantBin int            `json:"dominant_bin"`
	Frequency   float64        `json:"dominant_frequency"`
	Magnitude   float64        `json:"magnitude"`
	Steps       int            `json:"steps"`
	Status      cadence.Status `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Stats struct {
	Sessions       int              `json:"sessions"`
	Batches        uint64           `json:"batches"`
	Analyses       uint64           `json:"analyses"`
	NoSignal       uint64           `json:"no_signal"`
	HistoryEnabled bool             `json:"history_enabled"`
	HistoryCounts  map[string]int64 `json:"history_counts,omitempty"`
}

// Settings is the service-wide configuration every session follows.
type Settings struct {
	SampleRate  int                 `json:"sample_rate" yaml:"sample_rate"`
	WindowSize  int                 `json:"window_size" yaml:"window_size"`
	Band        cadence.Band        `json:"band" yaml:"band"`
	ResetPolicy signal.ResetPolicy  `json:"reset_policy" yaml:"reset_policy"`
	ElapsedMode session.ElapsedMode `json:"elapsed_mode" yaml:"elapsed_mode"`
	MaxSessions int                 `json:"max_sessions" yaml:"max_sessions"`
}
