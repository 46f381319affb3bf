// Package notify announces completed mirror runs to downstream
// consumers. The provider is chosen by configuration; the default noop
// provider makes notifications a strictly optional concern.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/config"
	"github.com/mdmirror/mdmirror/internal/hackmd"
)

// New builds the notifier named by the configuration.
func New(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger) (hackmd.Notifier, error) {
	switch cfg.Provider {
	case "noop", "":
		return Noop{}, nil
	case "pubsub":
		return NewPubSub(ctx, cfg.ProjectID, cfg.TopicID, logger)
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Provider)
	}
}

// Noop discards notifications.
type Noop struct{}

func (Noop) Notify(context.Context, hackmd.RunSummary) error { return nil }
func (Noop) Close() error                                    { return nil }
