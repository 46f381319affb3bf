// Package store selects the configured snapshot store provider.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/config"
	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/store/file"
	"github.com/mdmirror/mdmirror/internal/store/postgres"
)

// New builds the snapshot store named by the configuration.
func New(ctx context.Context, cfg config.SnapshotConfig, logger *zap.Logger) (hackmd.Store, error) {
	switch cfg.Provider {
	case "file", "":
		return file.New(cfg.Path, logger)
	case "postgres":
		return postgres.New(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown snapshot provider: %s", cfg.Provider)
	}
}
