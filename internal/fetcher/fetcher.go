// Package fetcher downloads document content with bounded concurrency.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/metrics"
	"github.com/mdmirror/mdmirror/internal/session"
)

// DefaultConcurrency caps simultaneous in-flight downloads.
const DefaultConcurrency = 5

// Downloader fetches each page's content over the shared authenticated
// session. The session is read-only during the fetch phase, so the
// concurrent goroutines need no locking around it.
type Downloader struct {
	client      *session.Client
	serverURL   string
	concurrency int
	logger      *zap.Logger
}

// New constructs a Downloader.
func New(client *session.Client, serverURL string, concurrency int, logger *zap.Logger) *Downloader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		client:      client,
		serverURL:   serverURL,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Download attaches content to every page it can fetch, writing
// results back by positional index so the final order always equals
// the listing order regardless of completion order. A failed download
// leaves that page's content absent and never fails the operation.
// The returned count is the number of pages that failed.
func (d *Downloader) Download(ctx context.Context, pages hackmd.PageList) int {
	var failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i := range pages {
		g.Go(func() error {
			metrics.IncInflight()
			defer metrics.DecInflight()

			start := time.Now()
			d.logger.Info("downloading", zap.String("id", pages[i].ID))
			content, err := d.fetchOne(ctx, pages[i].ID)
			if err != nil {
				failed.Add(1)
				metrics.ObservePage("failed", time.Since(start))
				d.logger.Warn("download failed",
					zap.String("id", pages[i].ID),
					zap.Error(err),
				)
				return nil
			}
			pages[i].Content = &content
			metrics.ObservePage("downloaded", time.Since(start))
			return nil
		})
	}
	// Goroutines absorb their own failures, so Wait never errors.
	_ = g.Wait()

	return int(failed.Load())
}

func (d *Downloader) fetchOne(ctx context.Context, id string) (string, error) {
	pageURL := fmt.Sprintf("%s/%s/download", d.serverURL, id)
	resp, err := d.client.Get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("download %s: status %d", id, resp.StatusCode)
	}
	// A truncated read is a fetch failure, never stored as partial content.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", id, err)
	}
	return string(body), nil
}
