package cadence

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/Podometre/pkg/podometre/spectral"
)

const (
	// NoBin marks an estimate where no bin in the band qualified.
	NoBin = -1
	// InvalidFrequency is reported instead of a cadence when NoBin is set.
	// It is deliberately not 0 Hz.
	InvalidFrequency = -1.0
	// NoiseFloorRatio is the fraction of the strongest bin of the whole
	// spectrum that a band bin must exceed. Below it, FFT round-off is
	// treated as no energy.
	NoiseFloorRatio = 1e-9
)

var ErrBand = errors.New("invalid cadence band")

// Status describes where a session sits in the FILLING/READY cycle.
type Status string

const (
	StatusFilling  Status = "filling"
	StatusReady    Status = "ready"
	StatusNoSignal Status = "no_signal"
)

// Band is the range of plausible walking cadences in Hz. MaxHz <= 0 means
// unbounded: the search runs up to the last non-redundant bin.
type Band struct {
	MinHz float64 `json:"min_hz" mapstructure:"min_hz" yaml:"min_hz"`
	MaxHz float64 `json:"max_hz" mapstructure:"max_hz" yaml:"max_hz"`
}

// DefaultBand is the typical walking range.
var DefaultBand = Band{MinHz: 1, MaxHz: 3}

// Unbounded reports whether the band has no upper limit.
func (b Band) Unbounded() bool {
	return b.MaxHz <= 0
}

func (b Band) Validate() error {
	if math.IsNaN(b.MinHz) || math.IsInf(b.MinHz, 0) || b.MinHz < 0 {
		return fmt.Errorf("%w: min_hz %v", ErrBand, b.MinHz)
	}
	if math.IsNaN(b.MaxHz) || math.IsInf(b.MaxHz, 0) {
		return fmt.Errorf("%w: max_hz %v", ErrBand, b.MaxHz)
	}
	if !b.Unbounded() && b.MaxHz < b.MinHz {
		return fmt.Errorf("%w: max_hz %v below min_hz %v", ErrBand, b.MaxHz, b.MinHz)
	}
	return nil
}

func (b Band) String() string {
	if b.Unbounded() {
		return fmt.Sprintf("[%g Hz, +inf)", b.MinHz)
	}
	return fmt.Sprintf("[%g Hz, %g Hz]", b.MinHz, b.MaxHz)
}

// Estimate is the outcome of one analysis.
type Estimate struct {
	DominantBin int     `json:"dominant_bin"`
	Frequency   float64 `json:"dominant_frequency"`
	Magnitude   float64 `json:"magnitude"`
	Steps       int     `json:"steps"`
	Status      Status  `json:"status"`
}

// Found reports whether a dominant bin was located.
func (e Estimate) Found() bool {
	return e.DominantBin != NoBin
}

// Filling is the estimate reported while the window is still incomplete.
func Filling() Estimate {
	return Estimate{
		DominantBin: NoBin,
		Frequency:   InvalidFrequency,
		Status:      StatusFilling,
	}
}

// Bounds converts band to inclusive bin indices for a window of size
// windowSize sampled at sampleRate. The result is clamped to the
// non-redundant half; min > max means the band covers no bin.
func Bounds(band Band, windowSize, sampleRate int) (int, int) {
	n := float64(windowSize)
	fs := float64(sampleRate)
	last := windowSize/2 - 1

	minIdx := int(math.Ceil(band.MinHz * n / fs))
	maxIdx := last
	if band.Unbounded() {
		// skip DC
		if minIdx < 1 {
			minIdx = 1
		}
	} else {
		maxIdx = int(math.Floor(band.MaxHz * n / fs))
	}

	if minIdx < 0 {
		minIdx = 0
	}
	if maxIdx > last {
		maxIdx = last
	}
	return minIdx, maxIdx
}

// NoiseFloor returns NoiseFloorRatio times the largest magnitude.
func NoiseFloor(magnitudes []float64) float64 {
	peak := 0.0
	for _, m := range magnitudes {
		if m > peak {
			peak = m
		}
	}
	return peak * NoiseFloorRatio
}

// DominantBin scans [minIdx, maxIdx] for the strictly largest magnitude
// above floor. Earlier bins win ties.
func DominantBin(magnitudes []float64, minIdx, maxIdx int, floor float64) (int, float64) {
	bin := NoBin
	best := floor
	if best < 0 {
		best = 0
	}
	if minIdx < 0 {
		minIdx = 0
	}
	if maxIdx >= len(magnitudes) {
		maxIdx = len(magnitudes) - 1
	}
	for i := minIdx; i <= maxIdx; i++ {
		if magnitudes[i] > best {
			best = magnitudes[i]
			bin = i
		}
	}
	return bin, best
}

// StepCount is floor(frequency * elapsed), never negative.
func StepCount(frequency, elapsed float64) int {
	steps := math.Floor(frequency * elapsed)
	if math.IsNaN(steps) || steps <= 0 {
		return 0
	}
	if steps > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(steps)
}

// EstimateSteps picks the dominant bin of spectrum within band and converts it into
// a step count over elapsed seconds.
func EstimateSteps(spectrum *spectral.Result, band Band, elapsed float64) Estimate {
	minIdx, maxIdx := Bounds(band, spectrum.WindowSize, spectrum.SampleRate)
	bin, mag := DominantBin(spectrum.Magnitudes, minIdx, maxIdx, NoiseFloor(spectrum.Magnitudes))
	if bin == NoBin {
		return Estimate{
			DominantBin: NoBin,
			Frequency:   InvalidFrequency,
			Status:      StatusNoSignal,
		}
	}

	freq := spectrum.BinFrequency(bin)
	return Estimate{
		DominantBin: bin,
		Frequency:   freq,
		Magnitude:   mag,
		Steps:       StepCount(freq, elapsed),
		Status:      StatusReady,
	}
}
