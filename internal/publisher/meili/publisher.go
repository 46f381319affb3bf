// Package meili pushes snapshot pages into a Meilisearch index.
package meili

import (
	"context"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/config"
	"github.com/mdmirror/mdmirror/internal/hackmd"
)

const primaryKey = "id"

// taskPollInterval is how often task completion is polled.
const taskPollInterval = 50 * time.Millisecond

// Publisher indexes pages into Meilisearch so snapshots become
// full-text searchable.
type Publisher struct {
	client meilisearch.ServiceManager
	index  string
	logger *zap.Logger
}

// New connects to the Meilisearch instance named by the configuration.
func New(cfg config.SearchConfig, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := meilisearch.New(cfg.URL, meilisearch.WithAPIKey(cfg.APIKey))
	return &Publisher{client: client, index: cfg.Index, logger: logger}
}

// Publish upserts every page into the index, creating the index with
// the page id as primary key when it does not exist yet. Pages without
// content are indexed too; their content field is null.
func (p *Publisher) Publish(ctx context.Context, pages hackmd.PageList) error {
	if _, err := p.client.HealthWithContext(ctx); err != nil {
		return fmt.Errorf("meilisearch health: %w", err)
	}

	if err := p.ensureIndex(ctx); err != nil {
		return err
	}

	task, err := p.client.Index(p.index).AddDocumentsWithContext(ctx, pages, primaryKey)
	if err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	if err := p.waitForTask(ctx, task.TaskUID); err != nil {
		return err
	}

	p.logger.Info("pages indexed",
		zap.String("index", p.index),
		zap.Int("pages", len(pages)),
	)
	return nil
}

func (p *Publisher) ensureIndex(ctx context.Context) error {
	if _, err := p.client.GetIndexWithContext(ctx, p.index); err == nil {
		return nil
	}

	task, err := p.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{
		Uid:        p.index,
		PrimaryKey: primaryKey,
	})
	if err != nil {
		return fmt.Errorf("create index %s: %w", p.index, err)
	}
	return p.waitForTask(ctx, task.TaskUID)
}

func (p *Publisher) waitForTask(ctx context.Context, taskUID int64) error {
	task, err := p.client.WaitForTaskWithContext(ctx, taskUID, taskPollInterval)
	if err != nil {
		return fmt.Errorf("wait for task %d: %w", taskUID, err)
	}
	if task.Status != meilisearch.TaskStatusSucceeded {
		return fmt.Errorf("task %d finished with status %s", taskUID, task.Status)
	}
	return nil
}
