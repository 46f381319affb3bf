package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/session"
)

// Flow acquires a CSRF token and logs in, leaving the shared session
// client authenticated for the rest of the run. Nothing is persisted.
type Flow struct {
	client    *session.Client
	serverURL string
	creds     hackmd.CredentialProvider
	logger    *zap.Logger
}

// NewFlow constructs a Flow.
func NewFlow(client *session.Client, serverURL string, creds hackmd.CredentialProvider, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		client:    client,
		serverURL: serverURL,
		creds:     creds,
		logger:    logger,
	}
}

// Login runs the strictly ordered auth steps: fetch landing page,
// extract CSRF token, obtain credentials, submit the login form.
func (f *Flow) Login(ctx context.Context) error {
	token, err := f.fetchToken(ctx)
	if err != nil {
		return err
	}
	f.logger.Debug("CSRF token acquired")

	creds, err := f.creds.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("acquire credentials: %w", err)
	}

	form := url.Values{
		"email":    {creds.Email},
		"password": {creds.Password},
	}
	header := http.Header{"X-Xsrf-Token": {token}}

	resp, err := f.client.PostForm(ctx, f.serverURL+"/login", form, header)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", hackmd.ErrLoginFailed, resp.StatusCode)
	}
	f.logger.Info("login succeeded", zap.String("user", creds.Email))
	return nil
}

func (f *Flow) fetchToken(ctx context.Context) (string, error) {
	resp, err := f.client.Get(ctx, f.serverURL)
	if err != nil {
		return "", fmt.Errorf("fetch landing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("fetch landing page: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read landing page: %w", err)
	}
	return ExtractToken(body)
}
