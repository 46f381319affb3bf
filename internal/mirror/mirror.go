// Package mirror drives the authenticated fetch pipeline: login,
// team listing, bounded content download, and snapshot persistence.
package mirror

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/auth"
	"github.com/mdmirror/mdmirror/internal/fetcher"
	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/listing"
	"github.com/mdmirror/mdmirror/internal/metrics"
	"github.com/mdmirror/mdmirror/internal/session"
)

// Options selects the run mode and the remote endpoints.
type Options struct {
	ServerURL    string
	Team         string
	SnapshotPath string
	Update       bool
	Concurrency  int
}

// Runner executes one mirror run. Auth strictly precedes listing,
// listing precedes download, download precedes persistence.
type Runner struct {
	opts   Options
	client *session.Client
	store  hackmd.Store
	creds  hackmd.CredentialProvider
	logger *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(
	opts Options,
	client *session.Client,
	store hackmd.Store,
	creds hackmd.CredentialProvider,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		opts:   opts,
		client: client,
		store:  store,
		creds:  creds,
		logger: logger,
	}
}

// Run builds a fresh snapshot when the update flag is set or no
// snapshot exists yet; otherwise it loads the existing snapshot with
// no network activity. The summary is non-nil only for build runs.
func (r *Runner) Run(ctx context.Context) (hackmd.PageList, *hackmd.RunSummary, error) {
	// Configuration checks come before any network or prompt activity.
	if r.opts.SnapshotPath == "" {
		return nil, nil, hackmd.MissingArgument("snapshot")
	}

	build := r.opts.Update
	if !build {
		exists, err := r.store.Exists(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("check snapshot: %w", err)
		}
		build = !exists
	}

	if !build {
		r.logger.Info("loading snapshot", zap.String("path", r.opts.SnapshotPath))
		pages, err := r.store.Load(ctx)
		if err != nil {
			return nil, nil, err
		}
		return pages, nil, nil
	}

	if r.opts.Team == "" {
		return nil, nil, hackmd.MissingArgument("team")
	}

	pages, summary, err := r.build(ctx)
	if err != nil {
		metrics.ObserveRun("failed")
		return nil, nil, err
	}
	metrics.ObserveRun("succeeded")
	return pages, summary, nil
}

func (r *Runner) build(ctx context.Context) (hackmd.PageList, *hackmd.RunSummary, error) {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID), zap.String("team", r.opts.Team))
	logger.Info("building snapshot")

	flow := auth.NewFlow(r.client, r.opts.ServerURL, r.creds, logger)
	if err := flow.Login(ctx); err != nil {
		return nil, nil, err
	}

	pages, err := listing.NewFetcher(r.client, r.opts.ServerURL, logger).Fetch(ctx, r.opts.Team)
	if err != nil {
		return nil, nil, err
	}

	downloader := fetcher.New(r.client, r.opts.ServerURL, r.opts.Concurrency, logger)
	failed := downloader.Download(ctx, pages)

	// Fatal errors above never reach persistence, so a failed run
	// leaves any prior snapshot untouched.
	if err := r.store.Save(ctx, pages); err != nil {
		return nil, nil, fmt.Errorf("persist snapshot: %w", err)
	}

	summary := &hackmd.RunSummary{
		RunID:      runID,
		Team:       r.opts.Team,
		Pages:      len(pages),
		Downloaded: pages.Downloaded(),
		Failed:     failed,
		Snapshot:   r.opts.SnapshotPath,
	}
	logger.Info("snapshot built",
		zap.Int("pages", summary.Pages),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("failed", summary.Failed),
	)
	return pages, summary, nil
}
