package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/festtally/festtally/server/internal/page"
	"github.com/festtally/festtally/server/internal/term"
)

func newShowCmd(configPath *string) *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the ranked standings as a table",
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
			opts, err := page.OptionsFrom(cfg)
			if err != nil {
				return err
			}
			slog.Info("show: loaded", "run_id", res.RunID, "summary", term.Summary(res.Spec))
			return term.Render(cmd.OutOrStdout(), res.Spec, term.Options{
				Title:       cfg.Page.Title,
				LastUpdated: page.LastUpdated(time.Now(), opts.Location),
				Stale:       res.Stale,
			})
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "read the tally from a local CSV file instead of the feed URL")
	return cmd
}
