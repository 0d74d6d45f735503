// Package recording loads captured vertical acceleration traces from disk so
// they can be replayed through the step estimator.
//
// Three formats are understood: 16/24/32-bit PCM WAV where the WAV sample
// rate is the accelerometer rate, CSV with one sample per row, and JSON in
// either the bare-array or the request-body shape.
package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnknownFormat = errors.New("unknown recording format")
	ErrEmpty         = errors.New("recording has no samples")
)

type Format string

const (
	FormatWAV  Format = "wav"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Recording is a mono acceleration trace.
type Recording struct {
	SampleRate int
	Samples    []float64
}

// Duration in seconds, 0 when the rate is unknown.
func (r *Recording) Duration() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(len(r.Samples)) / float64(r.SampleRate)
}

// Chunk splits the trace into consecutive batches of at most size samples.
// The last batch may be shorter.
func (r *Recording) Chunk(size int) [][]float64 {
	if size <= 0 || len(r.Samples) == 0 {
		return nil
	}
	out := make([][]float64, 0, (len(r.Samples)+size-1)/size)
	for start := 0; start < len(r.Samples); start += size {
		end := min(start+size, len(r.Samples))
		out = append(out, r.Samples[start:end])
	}
	return out
}

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads a recording, picking the decoder from the file extension.
// sampleRate is used for formats that do not carry one and may be 0 for
// those that do.
func Load(path string, sampleRate int) (*Recording, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rec *Recording
	switch format {
	case FormatWAV:
		rec, err = ReadWAV(f)
	case FormatCSV:
		rec, err = ReadCSV(f, -1)
	case FormatJSON:
		rec, err = ReadJSON(f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if rec.SampleRate <= 0 {
		rec.SampleRate = sampleRate
	}
	if len(rec.Samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return rec, nil
}
