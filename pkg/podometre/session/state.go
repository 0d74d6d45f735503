// Package session owns the per-user window, configuration and last
// estimate. Every exported method on State is safe for concurrent use.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
	"github.com/himanishpuri/Podometre/pkg/podometre/signal"
	"github.com/himanishpuri/Podometre/pkg/podometre/spectral"
)

// MaxWindowSize bounds the per-session allocation.
const MaxWindowSize = 1 << 16

var (
	ErrConfig         = errors.New("invalid configuration")
	ErrInvalidRequest = errors.New("invalid request")
)

// ElapsedMode selects where the elapsed time used for step counting comes
// from.
type ElapsedMode string

const (
	// ElapsedSupplied uses the time sent with each batch.
	ElapsedSupplied ElapsedMode = "supplied"
	// ElapsedWindow uses the window duration N/fs.
	ElapsedWindow ElapsedMode = "window"
)

func (m ElapsedMode) Valid() bool {
	return m == ElapsedSupplied || m == ElapsedWindow
}

// Params are fixed for the life of a State.
type Params struct {
	SampleRate  int
	WindowSize  int
	Band        cadence.Band
	Policy      signal.ResetPolicy
	ElapsedMode ElapsedMode
}

// Validate checks every field of p.
func (p Params) Validate() error {
	if err := ValidateWindow(p.SampleRate, p.WindowSize); err != nil {
		return err
	}
	if err := p.Band.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if !p.Policy.Valid() {
		return fmt.Errorf("%w: unknown reset policy %q", ErrConfig, p.Policy)
	}
	if !p.ElapsedMode.Valid() {
		return fmt.Errorf("%w: unknown elapsed mode %q", ErrConfig, p.ElapsedMode)
	}
	return nil
}

// ValidateWindow checks a sample rate / window size pair.
func ValidateWindow(sampleRate, windowSize int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %w: got %d", ErrConfig, spectral.ErrSampleRate, sampleRate)
	}
	if !signal.IsPowerOfTwo(windowSize) {
		return fmt.Errorf("%w: %w: got %d", ErrConfig, spectral.ErrWindowSize, windowSize)
	}
	if windowSize > MaxWindowSize {
		return fmt.Errorf("%w: window size %d above maximum %d", ErrConfig, windowSize, MaxWindowSize)
	}
	return nil
}

// Batch is one group of samples. A zero SampleRate or WindowSize keeps the
// session's current value.
type Batch struct {
	Elapsed    float64
	SampleRate int
	WindowSize int
	Samples    []float64
}

// Snapshot is a consistent copy of a State taken under its lock.
type Snapshot struct {
	ID          string             `json:"id"`
	SampleRate  int                `json:"sample_rate"`
	WindowSize  int                `json:"window_size"`
	Elapsed     float64            `json:"elapsed"`
	Steps       int                `json:"steps"`
	Estimate    cadence.Estimate   `json:"estimate"`
	Buffer      []float64          `json:"buffer"`
	Band        cadence.Band       `json:"band"`
	Policy      signal.ResetPolicy `json:"policy"`
	ElapsedMode ElapsedMode        `json:"elapsed_mode"`
	Batches     uint64             `json:"batches"`
	Analyses    uint64             `json:"analyses"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Ready reports whether the last batch filled a whole window.
func (s Snapshot) Ready() bool {
	return len(s.Buffer) == s.WindowSize
}

// Outcome describes what one Ingest did.
type Outcome struct {
	Analyzed  bool
	Estimate  cadence.Estimate
	BufferLen int
}

type State struct {
	mu sync.Mutex

	id          string
	band        cadence.Band
	policy      signal.ResetPolicy
	elapsedMode ElapsedMode

	sampleRate int
	windowSize int
	elapsed    float64
	steps      int
	estimate   cadence.Estimate
	buffer     *signal.Buffer

	batches   uint64
	analyses  uint64
	createdAt time.Time
	updatedAt time.Time

	now func() time.Time
}

// New creates an empty session.
func New(id string, p Params) (*State, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalidRequest)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	buf, err := signal.NewBuffer(p.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	s := &State{
		id:          id,
		band:        p.Band,
		policy:      p.Policy,
		elapsedMode: p.ElapsedMode,
		sampleRate:  p.SampleRate,
		windowSize:  p.WindowSize,
		estimate:    cadence.Filling(),
		buffer:      buf,
		now:         time.Now,
	}
	s.createdAt = s.now()
	s.updatedAt = s.createdAt
	return s, nil
}

func (s *State) ID() string {
	return s.id
}

// Ingest applies b atomically: reconfigure, push samples according to the
// reset policy, and rerun the analysis when the window is full. On error
// the state is left untouched.
func (s *State) Ingest(b Batch) (Snapshot, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.SampleRate == 0 {
		b.SampleRate = s.sampleRate
	}
	if b.WindowSize == 0 {
		b.WindowSize = s.windowSize
	}
	if err := ValidateWindow(b.SampleRate, b.WindowSize); err != nil {
		return Snapshot{}, Outcome{}, err
	}

	if b.WindowSize != s.windowSize {
		if err := s.buffer.Resize(b.WindowSize); err != nil {
			return Snapshot{}, Outcome{}, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		s.windowSize = b.WindowSize
	}
	s.sampleRate = b.SampleRate

	s.elapsed = b.Elapsed
	if s.elapsedMode == ElapsedWindow {
		s.elapsed = float64(s.windowSize) / float64(s.sampleRate)
	}

	if s.policy == signal.PolicyReset {
		s.buffer.Reset()
	}
	s.buffer.PushAll(b.Samples)

	out := Outcome{BufferLen: s.buffer.Len()}
	if s.buffer.Full() {
		window := s.buffer.Ordered()
		spectrum, err := spectral.Analyze(window, s.sampleRate)
		if err != nil {
			// unreachable once ValidateWindow passed
			return Snapshot{}, Outcome{}, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		s.estimate = cadence.EstimateSteps(spectrum, s.band, s.elapsed)
		s.analyses++
		out.Analyzed = true
	} else {
		s.estimate = cadence.Filling()
	}
	s.steps = s.estimate.Steps
	out.Estimate = s.estimate

	s.batches++
	s.updatedAt = s.now()

	return s.snapshotLocked(), out, nil
}

// Snapshot returns a consistent copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		ID:          s.id,
		SampleRate:  s.sampleRate,
		WindowSize:  s.windowSize,
		Elapsed:     s.elapsed,
		Steps:       s.steps,
		Estimate:    s.estimate,
		Buffer:      s.buffer.Ordered(),
		Band:        s.band,
		Policy:      s.policy,
		ElapsedMode: s.elapsedMode,
		Batches:     s.batches,
		Analyses:    s.analyses,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}
