// Package cmd defines and implements the CLI commands for the mdmirror
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/auth"
	"github.com/mdmirror/mdmirror/internal/config"
	"github.com/mdmirror/mdmirror/internal/hackmd"
	"github.com/mdmirror/mdmirror/internal/logging"
	"github.com/mdmirror/mdmirror/internal/metrics"
	"github.com/mdmirror/mdmirror/internal/session"
	"github.com/mdmirror/mdmirror/internal/store"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the services commands depend on. The interface allows a
// mock app to be injected during tests.
type App interface {
	Config() config.Config
	Logger() *zap.Logger
	Client() *session.Client
	Store() hackmd.Store
	Credentials() hackmd.CredentialProvider
	Close()
}

// newApp is the application factory. It is a variable so tests can
// replace it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	return buildApp(ctx)
}

type appServices struct {
	cfg    config.Config
	logger *zap.Logger
	client *session.Client
	store  hackmd.Store
	creds  hackmd.CredentialProvider
}

func buildApp(ctx context.Context) (*appServices, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	metrics.Init()

	client, err := session.New(session.Config{
		Timeout:        cfg.Timeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init session client: %w", err)
	}

	st, err := store.New(ctx, cfg.Snapshot, logger)
	if err != nil {
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}

	var creds hackmd.CredentialProvider
	switch cfg.Credentials.Provider {
	case "env":
		creds = auth.EnvProvider{}
	default:
		creds = auth.NewTerminalProvider()
	}

	return &appServices{
		cfg:    cfg,
		logger: logger,
		client: client,
		store:  st,
		creds:  creds,
	}, nil
}

func (a *appServices) Config() config.Config { return a.cfg }

func (a *appServices) Logger() *zap.Logger { return a.logger }

func (a *appServices) Client() *session.Client { return a.client }

func (a *appServices) Store() hackmd.Store { return a.store }

func (a *appServices) Credentials() hackmd.CredentialProvider { return a.creds }

func (a *appServices) Close() {
	_ = a.logger.Sync()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mdmirror",
		Short: "Mirror a HackMD team to a local searchable snapshot.",
		Long: `mdmirror logs into a HackMD instance, lists every document the
team owns, downloads their content with bounded concurrency, and
persists the result as a snapshot that can be served and indexed.`,

		// Runs before the subcommand's RunE so services are ready.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default reads MDMIRROR_* environment)")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
