package recording

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const pcmFormat = 1

// ReadWAV decodes a PCM WAV stream into mono samples normalized to [-1, 1].
// Multi-channel files are averaged.
func ReadWAV(r io.ReadSeeker) (*Recording, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}
	if decoder.BitDepth == 0 {
		return nil, errors.New("missing bit depth")
	}

	channels := int(decoder.NumChans)
	if channels <= 0 {
		channels = 1
	}
	scale := 1.0 / float64(int64(1)<<(decoder.BitDepth-1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) * scale
	}

	return &Recording{
		SampleRate: int(decoder.SampleRate),
		Samples:    samples,
	}, nil
}

// WriteWAV encodes rec as mono PCM. Samples are clipped to [-1, 1].
func WriteWAV(w io.WriteSeeker, rec *Recording, bitDepth int) error {
	if rec.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	peak := float64(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, len(rec.Samples))
	for i, s := range rec.Samples {
		if math.IsNaN(s) {
			s = 0
		}
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * peak))
	}

	enc := wav.NewEncoder(w, rec.SampleRate, bitDepth, 1, pcmFormat)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  rec.SampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing samples: %w", err)
	}
	return enc.Close()
}
