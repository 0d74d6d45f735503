package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/himanishpuri/Podometre/pkg/podometre"
	"github.com/spf13/cobra"
)

type statusReport struct {
	Session   podometre.Snapshot         `json:"session" yaml:"session"`
	Estimates []podometre.EstimateRecord `json:"estimates,omitempty" yaml:"estimates,omitempty"`
}

func (r *statusReport) header() []string {
	return []string{"SESSION", "FS", "N", "BUFFER", "ELAPSED(s)", "STATUS", "FREQ(Hz)", "STEPS"}
}

func (r *statusReport) rows() [][]string {
	s := r.Session
	return [][]string{{
		s.ID,
		strconv.Itoa(s.SampleRate),
		strconv.Itoa(s.WindowSize),
		strconv.Itoa(len(s.Buffer)),
		strconv.FormatFloat(s.Elapsed, 'f', 2, 64),
		string(s.Estimate.Status),
		strconv.FormatFloat(s.Estimate.Frequency, 'f', 4, 64),
		strconv.Itoa(s.Steps),
	}}
}

type sessionList struct {
	Sessions []podometre.SessionSummary `json:"sessions" yaml:"sessions"`
	Count    int                        `json:"count" yaml:"count"`
}

func (l *sessionList) header() []string {
	return []string{"SESSION", "FS", "N", "BUFFER", "BATCHES", "STATUS", "STEPS", "UPDATED"}
}

func (l *sessionList) rows() [][]string {
	out := make([][]string, 0, len(l.Sessions))
	for _, s := range l.Sessions {
		out = append(out, []string{
			s.ID,
			strconv.Itoa(s.SampleRate),
			strconv.Itoa(s.WindowSize),
			strconv.Itoa(s.BufferLen),
			strconv.FormatUint(s.Batches, 10),
			string(s.Status),
			strconv.Itoa(s.Steps),
			s.UpdatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func newStatusCmd() *cobra.Command {
	var (
		server  string
		history int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status [session]",
		Short: "Show one session, or list all sessions of a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(server, timeout)
			ctx := cmd.Context()

			if len(args) == 0 {
				var list sessionList
				if err := client.do(ctx, http.MethodGet, "/api/sessions", nil, &list); err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, &list)
			}

			path := "/api/sessions/" + url.PathEscape(args[0])
			var report statusReport
			if err := client.do(ctx, http.MethodGet, path, nil, &report.Session); err != nil {
				return err
			}
			if history > 0 {
				var est struct {
					Estimates []podometre.EstimateRecord `json:"estimates"`
				}
				q := fmt.Sprintf("%s/estimates?limit=%d", path, history)
				if err := client.do(ctx, http.MethodGet, q, nil, &est); err != nil {
					return err
				}
				report.Estimates = est.Estimates
			}
			return render(cmd.OutOrStdout(), outputFormat, &report)
		},
	}

	f := cmd.Flags()
	f.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	f.IntVar(&history, "history", 0, "also fetch the last n estimates")
	f.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return cfg.WriteYAML(cmd.OutOrStdout())
		},
	}
}
