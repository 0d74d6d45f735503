package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/himanishpuri/Podometre/internal/config"
	"github.com/himanishpuri/Podometre/pkg/podometre"
	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
	"github.com/himanishpuri/Podometre/pkg/podometre/recording"
	"github.com/himanishpuri/Podometre/pkg/podometre/signal"
	"github.com/spf13/cobra"
)

const analyzeSession = "analyze"

type batchRow struct {
	Index     int            `json:"index" yaml:"index"`
	Elapsed   float64        `json:"elapsed" yaml:"elapsed"`
	BufferLen int            `json:"buffer_len" yaml:"buffer_len"`
	Status    cadence.Status `json:"status" yaml:"status"`
	Bin       int            `json:"dominant_bin" yaml:"dominant_bin"`
	Frequency float64        `json:"dominant_frequency" yaml:"dominant_frequency"`
	Steps     int            `json:"steps" yaml:"steps"`
}

type analysisReport struct {
	File       string     `json:"file" yaml:"file"`
	SampleRate int        `json:"sample_rate" yaml:"sample_rate"`
	Duration   float64    `json:"duration" yaml:"duration"`
	WindowSize int        `json:"window_size" yaml:"window_size"`
	BatchSize  int        `json:"batch_size" yaml:"batch_size"`
	Policy     string     `json:"reset_policy" yaml:"reset_policy"`
	Steps      int        `json:"steps" yaml:"steps"`
	Batches    []batchRow `json:"batches" yaml:"batches"`
}

func (r *analysisReport) header() []string {
	return []string{"BATCH", "ELAPSED(s)", "BUFFER", "STATUS", "BIN", "FREQ(Hz)", "STEPS"}
}

func (r *analysisReport) rows() [][]string {
	out := make([][]string, 0, len(r.Batches))
	for _, b := range r.Batches {
		out = append(out, []string{
			strconv.Itoa(b.Index),
			strconv.FormatFloat(b.Elapsed, 'f', 2, 64),
			strconv.Itoa(b.BufferLen),
			string(b.Status),
			strconv.Itoa(b.Bin),
			strconv.FormatFloat(b.Frequency, 'f', 4, 64),
			strconv.Itoa(b.Steps),
		})
	}
	return out
}

func newAnalyzeCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run the step estimator over a recording",
		Long: `analyze replays a WAV, CSV or JSON acceleration recording through the
estimator in batches and reports the estimate after every batch. The elapsed
time sent with each batch is the recording time consumed so far.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rec, err := recording.Load(args[0], cfg.Estimator.SampleRate)
			if err != nil {
				return err
			}

			report, err := runAnalysis(cmd.Context(), cfg, rec, batch)
			if err != nil {
				return err
			}
			report.File = args[0]

			if err := render(cmd.OutOrStdout(), outputFormat, report); err != nil {
				return err
			}
			if outputFormat == "table" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s: %.2fs at %d Hz, %d steps\n",
					report.File, report.Duration, report.SampleRate, report.Steps)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&batch, "batch", 0, "samples per batch (default: window size, a quarter window when sliding)")
	f.Int("sample-rate", 100, "sampling frequency for files that do not carry one")
	f.Int("window-size", 1024, "analysis window (power of two)")
	f.Float64("min-hz", 1, "lower cadence band bound in Hz")
	f.Float64("max-hz", 3, "upper cadence band bound in Hz (0 = unbounded)")
	f.String("reset-policy", "reset", "buffer policy: reset or sliding")
	f.String("elapsed-mode", "supplied", "elapsed time source: supplied or window")
	return cmd
}

// runAnalysis feeds rec through an in-process service in consecutive batches.
func runAnalysis(ctx context.Context, cfg *config.Config, rec *recording.Recording, batch int) (*analysisReport, error) {
	if rec.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: recording has no sample rate", podometre.ErrConfig)
	}
	if batch <= 0 {
		batch = cfg.Estimator.WindowSize
		if signal.ResetPolicy(strings.ToLower(cfg.Estimator.ResetPolicy)) == signal.PolicySliding {
			batch = max(1, cfg.Estimator.WindowSize/4)
		}
	}

	opts := append(cfg.ServiceOptions(cliLogger(cfg)),
		podometre.WithSampleRate(rec.SampleRate),
		podometre.WithoutHistory(),
	)
	svc, err := podometre.NewService(opts...)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	report := &analysisReport{
		SampleRate: rec.SampleRate,
		Duration:   rec.Duration(),
		WindowSize: cfg.Estimator.WindowSize,
		BatchSize:  batch,
		Policy:     cfg.Estimator.ResetPolicy,
	}

	sent := 0
	for i, chunk := range rec.Chunk(batch) {
		sent += len(chunk)
		elapsed := float64(sent) / float64(rec.SampleRate)

		snap, err := svc.Ingest(ctx, podometre.IngestRequest{
			SessionID: analyzeSession,
			Elapsed:   &elapsed,
			Samples:   chunk,
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}

		report.Batches = append(report.Batches, batchRow{
			Index:     i,
			Elapsed:   snap.Elapsed,
			BufferLen: len(snap.Buffer),
			Status:    snap.Estimate.Status,
			Bin:       snap.Estimate.DominantBin,
			Frequency: snap.Estimate.Frequency,
			Steps:     snap.Steps,
		})
		if snap.Estimate.Found() {
			report.Steps = snap.Steps
		}
	}
	return report, nil
}
