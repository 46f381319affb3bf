package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/config"
	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/mirror"
	"github.com/mdmirror/mdmirror/internal/notify"
	"github.com/mdmirror/mdmirror/internal/publisher/meili"
	"github.com/mdmirror/mdmirror/internal/store"
)

// newSyncCmd creates the 'sync' subcommand. It either builds a fresh
// snapshot from the remote team or loads the existing one, then
// optionally indexes the pages and announces the run.
func newSyncCmd() *cobra.Command {
	var (
		team      string
		snapshot  string
		update    bool
		searchURL string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Build or load the team snapshot",
		Long: `Logs into the configured HackMD instance, lists the team documents,
downloads their content, and writes the snapshot. When a snapshot
already exists and --update is not given, the existing snapshot is
loaded instead and no network calls are made.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			cfg := appInstance.Config()
			if cmd.Flags().Changed("team") {
				cfg.Team = team
			}
			if cmd.Flags().Changed("update") {
				cfg.Snapshot.Update = update
			}
			if cmd.Flags().Changed("search-url") {
				cfg.Search.URL = searchURL
			}

			// The app's store was built from the configured path, so an
			// overriding flag needs a store pointing at the flag's path.
			st := appInstance.Store()
			if cmd.Flags().Changed("snapshot") {
				cfg.Snapshot.Path = snapshot
				st, err = store.New(cmd.Context(), cfg.Snapshot, appInstance.Logger())
				if err != nil {
					return err
				}
			}

			return runSync(cmd, appInstance, cfg, st)
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "team whose documents are mirrored")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot file path")
	cmd.Flags().BoolVar(&update, "update", false, "rebuild the snapshot even if one exists")
	cmd.Flags().StringVar(&searchURL, "search-url", "", "Meilisearch URL; indexing is skipped when empty")

	return cmd
}

func runSync(cmd *cobra.Command, appInstance App, cfg config.Config, st hackmd.Store) error {
	ctx := cmd.Context()
	logger := appInstance.Logger()

	runner := mirror.NewRunner(mirror.Options{
		ServerURL:    cfg.Server.URL,
		Team:         cfg.Team,
		SnapshotPath: cfg.Snapshot.Path,
		Update:       cfg.Snapshot.Update,
		Concurrency:  cfg.Fetch.Concurrency,
	}, appInstance.Client(), st, appInstance.Credentials(), logger)

	pages, summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Search.URL != "" {
		publisher := meili.New(cfg.Search, logger)
		if err := publisher.Publish(ctx, pages); err != nil {
			return fmt.Errorf("index pages: %w", err)
		}
	}

	// Notification failures are logged, never fatal.
	if summary != nil {
		notifier, err := notify.New(ctx, cfg.Notify, logger)
		if err != nil {
			logger.Warn("init notifier failed", zap.Error(err))
		} else {
			if err := notifier.Notify(ctx, *summary); err != nil {
				logger.Warn("run notification failed", zap.Error(err))
			}
			if err := notifier.Close(); err != nil {
				logger.Warn("close notifier failed", zap.Error(err))
			}
		}
	}

	logger.Info("sync finished",
		zap.Int("pages", len(pages)),
		zap.Int("downloaded", pages.Downloaded()),
	)
	return nil
}
