package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudops-tools/quota-notifier/internal/config"
	"github.com/cloudops-tools/quota-notifier/pkg/alerter"
	"github.com/cloudops-tools/quota-notifier/pkg/cf"
	"github.com/cloudops-tools/quota-notifier/pkg/compose"
	"github.com/cloudops-tools/quota-notifier/pkg/dispatch"
	"github.com/cloudops-tools/quota-notifier/pkg/evaluate"
	"github.com/cloudops-tools/quota-notifier/pkg/resolve"
	"github.com/cloudops-tools/quota-notifier/pkg/snapshot"
	"github.com/cloudops-tools/quota-notifier/pkg/throttle"
	"github.com/cloudops-tools/quota-notifier/pkg/uaa"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quota-notifier",
	Short: "Org memory quota alerting for Cloud Foundry platforms",
	Long: `quota-notifier periodically evaluates every organization's memory usage
against its quota and emails the org managers when consumption crosses a
configured threshold. Repeat notifications to the same recipient are
suppressed for a configurable cooldown window, persisted across restarts.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.quota-notifier/config.yaml)")
}

// loadConfig loads and validates the configuration. Validation failures are
// fatal: the process must not start scheduling on a broken config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStore opens the throttle database from config.
func initStore(cfg *config.Config) (throttle.Store, error) {
	return throttle.NewSQLite(cfg.Storage.Path)
}

// initComposer builds the message composer, honoring a template override
// file when configured.
func initComposer(cfg *config.Config) (*compose.Composer, error) {
	if cfg.Mail.TemplatesFile != "" {
		return compose.NewFromFile(cfg.Alerting.Sender, cfg.Mail.TemplatesFile)
	}
	return compose.New(cfg.Alerting.Sender)
}

// initChannel builds the one active delivery channel for this deployment.
func initChannel(cfg *config.Config) (dispatch.Channel, error) {
	channel, err := cfg.ActiveChannel()
	if err != nil {
		return nil, err
	}
	switch channel {
	case config.ChannelSMTP:
		return dispatch.NewSMTPChannel(
			cfg.Mail.SMTP.Host,
			cfg.Mail.SMTP.Port,
			cfg.Mail.SMTP.Username,
			cfg.Mail.SMTP.Password,
		)
	default:
		return dispatch.NewSendGridChannel(cfg.Mail.SendGrid.URL, cfg.Mail.SendGrid.APIKey)
	}
}

// initAlerter wires the full evaluation pipeline: platform clients, snapshot
// builder, evaluator, resolver, composer, channel, dispatcher. The caller
// owns the returned store.
func initAlerter(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) (*alerter.Alerter, throttle.Store, error) {
	tokenSource, err := cf.TokenSource(ctx, cfg.CF.UAA, cf.Credentials{
		Username:     cfg.CF.Username,
		Password:     cfg.CF.Password,
		ClientID:     cfg.CF.ClientID,
		ClientSecret: cfg.CF.ClientSecret,
	}, cfg.CF.SkipSSLValidation)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire credentials: %w", err)
	}

	cfClient, err := cf.NewClient(cf.ClientConfig{
		APIURL:        cfg.CF.API,
		TokenSource:   tokenSource,
		SkipTLSVerify: cfg.CF.SkipSSLValidation,
	})
	if err != nil {
		return nil, nil, err
	}

	uaaClient, err := uaa.NewClient(uaa.ClientConfig{
		UAAURL:        cfg.CF.UAA,
		TokenSource:   tokenSource,
		SkipTLSVerify: cfg.CF.SkipSSLValidation,
	})
	if err != nil {
		return nil, nil, err
	}

	store, err := initStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open throttle store: %w", err)
	}

	composer, err := initComposer(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	channel, err := initChannel(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	builder := snapshot.New(cfClient, logger)
	evaluator := evaluate.New(cfg.Alerting.ThresholdPct)
	resolver := resolve.New(cfClient, uaaClient, logger)
	dispatcher := dispatch.New(channel, store, composer, cfg.Alerting.Sender, cfg.Cooldown(), logger)

	return alerter.New(builder, evaluator, resolver, dispatcher, dryRun, logger), store, nil
}
