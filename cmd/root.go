// Package cmd defines and implements the CLI commands for the tendercrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/app"
	"github.com/JakeFAU/eop-tender-crawler/internal/config"
	"github.com/JakeFAU/eop-tender-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap in
// a differently configured container.
var newApp = func(ctx context.Context, cfgFile string) (*app.App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command. The returned func
// releases the services built for the command; it runs whether or not the
// command failed.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile     string
		appInstance *app.App
	)
	cmd := &cobra.Command{
		Use:   "tendercrawler",
		Short: "Collects today's public tenders from the Bulgarian e-procurement portal.",
		Long: `tendercrawler walks the paginated listing of newly published tenders on
app.eop.bg, opens every tender in an isolated browser context, extracts its
labeled fields and stops at the first tender published before today.

The collected tenders are checkpointed to a JSON snapshot after every page.
The snapshot can then be filtered locally for IT-related tenders or sent to
a text-analysis service for a written review.`,
		SilenceUsage: true,

		// Builds the shared services once the flags are parsed.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			appInstance = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables use the TENDER_ prefix")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newFilterCmd())
	cmd.AddCommand(newAnalyzeCmd())

	// PersistentPostRun is skipped when RunE fails, so cleanup is left to
	// the caller.
	release := func() {
		if appInstance == nil {
			return
		}
		appInstance.Close()
		_ = appInstance.Logger().Sync()
		appInstance = nil
	}
	return cmd, release
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	// A development logger covers failures that happen before the
	// configured one exists.
	if bootstrap, err := logging.New(logging.Config{Development: true}); err == nil {
		zap.ReplaceGlobals(bootstrap)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	root, release := newRootCmd()
	err := root.ExecuteContext(ctx)
	release()
	stop()
	if err != nil {
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}
