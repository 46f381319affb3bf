// Package listing retrieves the set of documents belonging to a team.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/session"
)

// Fetcher issues the team overview request over an authenticated
// session.
type Fetcher struct {
	client    *session.Client
	serverURL string
	logger    *zap.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(client *session.Client, serverURL string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:    client,
		serverURL: serverURL,
		logger:    logger,
	}
}

// Fetch returns the team's pages in listing order with content unset.
// An empty team is valid and yields an empty list.
func (f *Fetcher) Fetch(ctx context.Context, team string) (hackmd.PageList, error) {
	listURL := fmt.Sprintf("%s/api/overview/team/%s", f.serverURL, team)
	resp, err := f.client.Get(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hackmd.ErrListingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: status %d", hackmd.ErrListingFailed, resp.StatusCode)
	}

	var pages hackmd.PageList
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, fmt.Errorf("%w: decode overview: %w", hackmd.ErrListingFailed, err)
	}
	f.logger.Info("team listing fetched", zap.String("team", team), zap.Int("pages", len(pages)))
	return pages, nil
}
