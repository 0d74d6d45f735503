package recording

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadCSV reads one sample per row from column col. A negative col selects
// the last column, so both "value" and "time,value" files work. A first row
// that does not parse as a number is treated as a header.
func ReadCSV(r io.Reader, col int) (*Recording, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	rec := &Recording{}
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing csv: %w", err)
		}
		line++
		if len(row) == 0 {
			continue
		}

		idx := col
		if idx < 0 {
			idx = len(row) - 1
		}
		if idx >= len(row) {
			return nil, fmt.Errorf("line %d: column %d out of range", line, idx)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec.Samples = append(rec.Samples, v)
	}
	return rec, nil
}

// jsonRecording mirrors the ingestion request body.
type jsonRecording struct {
	SamplingFrequency     int        `json:"samplingFrequency"`
	VerticalAccelerations []*float64 `json:"verticalAccelerations"`
}

// ReadJSON accepts either a bare array of numbers or an object with
// samplingFrequency and verticalAccelerations. null entries become NaN.
func ReadJSON(r io.Reader) (*Recording, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("parsing json array: %w", err)
		}
		return &Recording{Samples: derefSamples(values)}, nil
	}

	var doc jsonRecording
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing json object: %w", err)
	}
	return &Recording{
		SampleRate: doc.SamplingFrequency,
		Samples:    derefSamples(doc.VerticalAccelerations),
	}, nil
}

func derefSamples(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}
