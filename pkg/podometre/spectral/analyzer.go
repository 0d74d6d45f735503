package spectral

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/himanishpuri/Podometre/pkg/podometre/signal"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrWindowSize = errors.New("window size must be a positive power of two")
	ErrSampleRate = errors.New("sample rate must be positive")
)

// Result is the non-redundant half of the magnitude spectrum of one window.
type Result struct {
	Magnitudes []float64 // len == WindowSize/2
	SampleRate int
	WindowSize int
}

// BinFrequency maps a bin index to Hz.
func (r *Result) BinFrequency(bin int) float64 {
	return float64(bin) * float64(r.SampleRate) / float64(r.WindowSize)
}

// Resolution is the spacing between bins in Hz.
func (r *Result) Resolution() float64 {
	return float64(r.SampleRate) / float64(r.WindowSize)
}

// RemoveDC subtracts the arithmetic mean from every sample in place and
// returns the mean that was removed.
func RemoveDC(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	mean := stat.Mean(window, nil)
	floats.AddConst(-mean, window)
	return mean
}

// FFTReal wraps the go-dsp FFT. The forward pass is unnormalized.
func FFTReal(frame []float64) []complex128 {
	return fft.FFTReal(frame)
}

// MagnitudeSpectrum converts a complex spectrum into a magnitude spectrum (positive freqs only)
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// Analyze removes the DC component from window (in place), runs the forward
// FFT and keeps the first len(window)/2 magnitudes.
func Analyze(window []float64, sampleRate int) (*Result, error) {
	n := len(window)
	if !signal.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: got %d", ErrWindowSize, n)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrSampleRate, sampleRate)
	}

	RemoveDC(window)
	spec := FFTReal(window)

	return &Result{
		Magnitudes: MagnitudeSpectrum(spec),
		SampleRate: sampleRate,
		WindowSize: n,
	}, nil
}
