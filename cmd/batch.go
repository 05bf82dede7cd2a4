package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/solar-router/internal/leads"
	"github.com/sells-group/solar-router/internal/model"
	"github.com/sells-group/solar-router/internal/qualify"
)

var (
	batchInput   string
	batchOutput  string
	batchFormat  string
	batchLimit   int
	batchCharset string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Qualify and route a file of leads concurrently",
	Long:  "Reads leads from a CSV, XLSX or JSON file, qualifies them with bounded concurrency and writes one result row per lead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, err := leads.ReadFileCharset(batchInput, batchCharset)
		if err != nil {
			return eris.Wrap(err, "read leads")
		}

		env, err := initEngine(ctx, cfg, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes, err := processBatch(ctx, input, batchLimit, cfg.Batch.MaxConcurrentLeads, env.Engine.Qualify)
		if err != nil {
			return err
		}

		format := batchFormat
		if format == "" {
			format = formatFromPath(batchOutput)
		}

		var out io.Writer = cmd.OutOrStdout()
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", batchOutput)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		return leads.Write(out, format, outcomes)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "lead file (.csv, .xlsx or .json)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "result file (default: stdout)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "", "output format: table, csv, json or xlsx (default: from --output extension, else table)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of leads to process (0 = all)")
	batchCmd.Flags().StringVar(&batchCharset, "charset", "", "CSV input charset, e.g. windows-1252 (default: utf-8)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// qualifyFunc is the callback signature for qualifying one lead.
type qualifyFunc func(ctx context.Context, leadID string, p model.CustomerProfile) *qualify.Outcome

// processBatch applies limit, then qualifies leads concurrently. Outcomes are
// returned in input order; a failed lead never aborts the batch.
func processBatch(ctx context.Context, input []leads.Lead, limit, concurrency int, fn qualifyFunc) ([]*qualify.Outcome, error) {
	if len(input) == 0 {
		zap.L().Info("no leads found")
		return nil, nil
	}

	if limit > 0 && len(input) > limit {
		input = input[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("leads", len(input)),
		zap.Int("concurrency", concurrency),
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var routed, unrouted, failed atomic.Int64
	outcomes := make([]*qualify.Outcome, len(input))

	for i, lead := range input {
		g.Go(func() error {
			log := zap.L().With(zap.String("lead_id", lead.ID))

			out := fn(gctx, lead.ID, lead.Profile)
			outcomes[i] = out

			switch {
			case out.Err != nil:
				failed.Add(1)
				log.Warn("lead failed", zap.String("code", out.Code), zap.Error(out.Err))
			case out.Decision != nil && out.Decision.ChosenPlatform != nil:
				routed.Add(1)
				log.Debug("lead routed",
					zap.String("platform", *out.Decision.ChosenPlatform),
					zap.Float64("expected_revenue", out.Decision.ExpectedRevenue),
				)
			default:
				unrouted.Add(1)
			}
			return nil // don't abort batch on individual failure
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("routed", routed.Load()),
		zap.Int64("unrouted", unrouted.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return outcomes, nil
}

func formatFromPath(path string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case leads.FormatCSV, leads.FormatJSON, leads.FormatXLSX:
		return ext
	default:
		return leads.FormatTable
	}
}
