package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/festtally/festtally/server/internal/chart"
	"github.com/festtally/festtally/server/internal/config"
	"github.com/festtally/festtally/server/internal/feed"
	"github.com/festtally/festtally/server/internal/page"
	"github.com/festtally/festtally/server/internal/pipeline"
	"github.com/festtally/festtally/server/internal/term"
)

func newRenderCmd(configPath *string) *cobra.Command {
	var (
		out     string
		format  string
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Run the pipeline once and write the chart as PNG, SVG or HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			setupLogging(os.Stderr, cfg.Logging)

			res, err := runOnce(cmd.Context(), cfg, csvPath)
			if err != nil {
				return err
			}
			slog.Info("render: loaded", "run_id", res.RunID, "format", format, "summary", term.Summary(res.Spec))

			var buf bytes.Buffer
			if err := renderTo(&buf, cfg, res, format); err != nil {
				return err
			}
			return writeOut(out, buf.Bytes(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file (- for stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "png", "output format: png | svg | html")
	cmd.Flags().StringVar(&csvPath, "csv", "", "read the tally from a local CSV file instead of the feed URL")
	return cmd
}

// runOnce runs the pipeline a single time, reading from csvPath when set.
func runOnce(ctx context.Context, cfg *config.Config, csvPath string) (*pipeline.Result, error) {
	var opts []pipeline.Option
	if csvPath != "" {
		opts = append(opts, pipeline.WithFetcher(feed.FileFetcher{Path: csvPath}))
	}
	return pipeline.New(cfg, opts...).Run(ctx)
}

func renderTo(w io.Writer, cfg *config.Config, res *pipeline.Result, format string) error {
	size := chart.Size{Width: cfg.Chart.Width, Height: cfg.Chart.Height}
	switch format {
	case "png":
		return chart.RenderPNG(w, res.Spec, size)
	case "svg":
		return chart.RenderSVG(w, res.Spec, size)
	case "html":
		opts, err := page.OptionsFrom(cfg)
		if err != nil {
			return err
		}
		opts = opts.ForResult(res)
		opts.LiveRefresh = false
		return page.NewPresenter().Render(w, res.Spec, opts)
	default:
		return fmt.Errorf("unknown format %q: want png, svg or html", format)
	}
}

func writeOut(path string, data []byte, stdout io.Writer) error {
	if path == "-" || path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // output artifact
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
