package main

import (
	"math"
	"time"

	"github.com/himanishpuri/Podometre/pkg/podometre"
)

// VerticalAccelerationRequest is the request body for POST /verticalAcceleration
type VerticalAccelerationRequest struct {
	// Name identifies the session; empty means podometre.DefaultSessionID
	Name string `json:"name"`

	// Time is the elapsed walking time in seconds
	Time *float64 `json:"time"`

	// SamplingFrequency and FFTSize are optional, absent keeps the session's values
	SamplingFrequency *int `json:"samplingFrequency"`
	FFTSize           *int `json:"fftSize"`

	// VerticalAccelerations may contain nulls, they count as missing samples
	VerticalAccelerations []*float64 `json:"verticalAccelerations"`
}

// ToIngest converts the body to a service request
func (r *VerticalAccelerationRequest) ToIngest() podometre.IngestRequest {
	name := r.Name
	if name == "" {
		name = podometre.DefaultSessionID
	}
	return podometre.IngestRequest{
		SessionID:  name,
		Elapsed:    r.Time,
		SampleRate: r.SamplingFrequency,
		WindowSize: r.FFTSize,
		Samples:    decodeSamples(r.VerticalAccelerations),
	}
}

// VerticalAccelerationResponse mirrors the session state in the legacy field names
type VerticalAccelerationResponse struct {
	Name                       string    `json:"name"`
	SamplingFrequency          int       `json:"samplingFrequency"`
	FFTSize                    int       `json:"fftSize"`
	Time                       float64   `json:"time"`
	Steps                      int       `json:"steps"`
	VerticalAccelerationBuffer []float64 `json:"verticalAccelerationBuffer"`
	DominantFrequency          float64   `json:"dominantFrequency"`
	DominantBin                int       `json:"dominantBin"`
	Status                     string    `json:"status"`
}

func newVerticalAccelerationResponse(snap *podometre.Snapshot) VerticalAccelerationResponse {
	buf := snap.Buffer
	if buf == nil {
		buf = []float64{}
	}
	return VerticalAccelerationResponse{
		Name:                       snap.ID,
		SamplingFrequency:          snap.SampleRate,
		FFTSize:                    snap.WindowSize,
		Time:                       snap.Elapsed,
		Steps:                      snap.Steps,
		VerticalAccelerationBuffer: buf,
		DominantFrequency:          snap.Estimate.Frequency,
		DominantBin:                snap.Estimate.DominantBin,
		Status:                     string(snap.Estimate.Status),
	}
}

// CreateSessionRequest is the request body for POST /api/sessions
type CreateSessionRequest struct {
	// ID is optional, a UUID is generated when empty
	ID         string `json:"id,omitempty"`
	SampleRate *int   `json:"sample_rate,omitempty"`
	WindowSize *int   `json:"window_size,omitempty"`
}

// SamplesRequest is the request body for POST /api/sessions/{id}/samples
type SamplesRequest struct {
	Elapsed    *float64   `json:"elapsed"`
	SampleRate *int       `json:"sample_rate,omitempty"`
	WindowSize *int       `json:"window_size,omitempty"`
	Samples    []*float64 `json:"samples"`
}

func (r *SamplesRequest) ToIngest(id string) podometre.IngestRequest {
	return podometre.IngestRequest{
		SessionID:  id,
		Elapsed:    r.Elapsed,
		SampleRate: r.SampleRate,
		WindowSize: r.WindowSize,
		Samples:    decodeSamples(r.Samples),
	}
}

// decodeSamples keeps nil for an absent array and maps null entries to NaN.
func decodeSamples(values []*float64) []float64 {
	if values == nil {
		return nil
	}
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

// ListSessionsResponse is the response for GET /api/sessions
type ListSessionsResponse struct {
	Sessions []podometre.SessionSummary `json:"sessions"`
	Count    int                        `json:"count"`
}

// EstimatesResponse is the response for GET /api/sessions/{id}/estimates
type EstimatesResponse struct {
	SessionID string                     `json:"session_id"`
	Estimates []podometre.EstimateRecord `json:"estimates"`
	Count     int                        `json:"count"`
}

// DeleteSessionResponse is the response for DELETE /api/sessions/{id}
type DeleteSessionResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and estimator metrics
type MetricsResponse struct {
	Status   string             `json:"status"`
	Uptime   string             `json:"uptime"`
	Started  time.Time          `json:"started"`
	Stats    podometre.Stats    `json:"stats"`
	Settings podometre.Settings `json:"settings"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
