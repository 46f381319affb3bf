package hackmd

import "context"

// CredentialProvider produces the login secret pair. Implementations
// include the interactive terminal prompt, environment variables, and
// a fixed struct for tests.
type CredentialProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Store persists and restores the page snapshot wholesale. Save
// replaces any prior snapshot in full; there is no partial or append
// persistence.
type Store interface {
	Save(ctx context.Context, pages PageList) error
	Load(ctx context.Context) (PageList, error)
	Exists(ctx context.Context) (bool, error)
}

// Publisher upserts a finished page collection into a search index,
// keyed by page id.
type Publisher interface {
	Publish(ctx context.Context, pages PageList) error
}

// Notifier announces a completed mirror run. Notification failures
// are logged, never fatal.
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) error
	Close() error
}
