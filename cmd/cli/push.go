package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/Podometre/pkg/podometre/recording"
	"github.com/spf13/cobra"
)

// apiClient talks to a running podometre-server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// legacyBatch is the POST /verticalAcceleration body.
type legacyBatch struct {
	Name                  string    `json:"name"`
	Time                  float64   `json:"time"`
	SamplingFrequency     int       `json:"samplingFrequency"`
	FFTSize               int       `json:"fftSize"`
	VerticalAccelerations []float64 `json:"verticalAccelerations"`
}

// legacyState is the /verticalAcceleration response.
type legacyState struct {
	Name              string  `json:"name" yaml:"name"`
	SamplingFrequency int     `json:"samplingFrequency" yaml:"sampling_frequency"`
	FFTSize           int     `json:"fftSize" yaml:"fft_size"`
	Time              float64 `json:"time" yaml:"time"`
	Steps             int     `json:"steps" yaml:"steps"`
	DominantFrequency float64 `json:"dominantFrequency" yaml:"dominant_frequency"`
	DominantBin       int     `json:"dominantBin" yaml:"dominant_bin"`
	Status            string  `json:"status" yaml:"status"`
	BufferLen         int     `json:"-" yaml:"buffer_len"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e apiError
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// pushBatch posts one batch in the legacy format.
func (c *apiClient) pushBatch(ctx context.Context, b legacyBatch) (*legacyState, error) {
	var raw struct {
		legacyState
		Buffer []float64 `json:"verticalAccelerationBuffer"`
	}
	if err := c.do(ctx, http.MethodPost, "/verticalAcceleration", b, &raw); err != nil {
		return nil, err
	}
	st := raw.legacyState
	st.BufferLen = len(raw.Buffer)
	return &st, nil
}

type pushReport struct {
	Server  string         `json:"server" yaml:"server"`
	Session string         `json:"session" yaml:"session"`
	Batches []legacyState `json:"batches" yaml:"batches"`
}

func (r *pushReport) header() []string {
	return []string{"BATCH", "TIME(s)", "BUFFER", "STATUS", "FREQ(Hz)", "STEPS"}
}

func (r *pushReport) rows() [][]string {
	out := make([][]string, 0, len(r.Batches))
	for i, b := range r.Batches {
		out = append(out, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(b.Time, 'f', 2, 64),
			strconv.Itoa(b.BufferLen),
			b.Status,
			strconv.FormatFloat(b.DominantFrequency, 'f', 4, 64),
			strconv.Itoa(b.Steps),
		})
	}
	return out
}

func newPushCmd() *cobra.Command {
	var (
		server  string
		session string
		batch   int
		pace    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Stream a recording to a running server",
		Long: `push sends a recording to POST /verticalAcceleration in batches, the
way a phone client would. Each batch carries the recording time consumed so
far. With --pace batches are sent in real time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if _, err := url.ParseRequestURI(server); err != nil {
				return fmt.Errorf("invalid server url %q: %w", server, err)
			}
			rec, err := recording.Load(args[0], cfg.Estimator.SampleRate)
			if err != nil {
				return err
			}
			if batch <= 0 {
				batch = cfg.Estimator.WindowSize
			}

			client := newAPIClient(server, timeout)
			report, err := pushRecording(cmd.Context(), client, rec, session, cfg.Estimator.WindowSize, batch, pace)
			if report != nil {
				report.Server = server
				if rerr := render(cmd.OutOrStdout(), outputFormat, report); rerr != nil && err == nil {
					err = rerr
				}
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	f.StringVar(&session, "session", "default", "session name")
	f.IntVar(&batch, "batch", 0, "samples per batch (default: window size)")
	f.BoolVar(&pace, "pace", false, "send batches in real time")
	f.DurationVar(&timeout, "timeout", 10*time.Second, "per request timeout")
	f.Int("sample-rate", 100, "sampling frequency for files that do not carry one")
	f.Int("window-size", 1024, "fftSize sent with every batch")
	return cmd
}

func pushRecording(ctx context.Context, c *apiClient, rec *recording.Recording, session string, windowSize, batch int, pace bool) (*pushReport, error) {
	report := &pushReport{Session: session}
	sent := 0
	for i, chunk := range rec.Chunk(batch) {
		sent += len(chunk)
		elapsed := float64(sent) / float64(rec.SampleRate)

		if pace && i > 0 {
			wait := time.Duration(float64(len(chunk)) / float64(rec.SampleRate) * float64(time.Second))
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(wait):
			}
		}

		st, err := c.pushBatch(ctx, legacyBatch{
			Name:                  session,
			Time:                  elapsed,
			SamplingFrequency:     rec.SampleRate,
			FFTSize:               windowSize,
			VerticalAccelerations: chunk,
		})
		if err != nil {
			return report, fmt.Errorf("batch %d: %w", i, err)
		}
		report.Batches = append(report.Batches, *st)
	}
	return report, nil
}
