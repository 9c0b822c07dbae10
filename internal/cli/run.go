package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudops-tools/quota-notifier/internal/server"
	"github.com/cloudops-tools/quota-notifier/pkg/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the quota alerting daemon",
	Long: `Run starts the scheduler and evaluates every organization at the
configured interval, delivering alert emails as thresholds are crossed.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	al, store, err := initAlerter(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	period, _ := cfg.PollInterval()
	delay, _ := cfg.InitialDelay()

	sched, err := scheduler.New(period, delay, func(ctx context.Context) {
		if _, err := al.RunPass(ctx); err != nil {
			logger.Error("evaluation pass failed", "error", err)
		}
	}, logger)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	logger.Info("scheduler started",
		"period", period.String(),
		"initial_delay", delay.String(),
		"threshold_pct", cfg.Alerting.ThresholdPct)

	// Optional ops endpoint.
	var srv *http.Server
	if cfg.Server.Listen != "" {
		ops := server.NewServer(al, store, logger)
		srv = &http.Server{
			Addr:         cfg.Server.Listen,
			Handler:      ops.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("ops server started", "listen", cfg.Server.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("ops server failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", "signal", sig.String())

	// Let an in-flight pass finish recording its sends before exiting.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown ops server: %w", err)
		}
	}

	logger.Info("stopped")
	return nil
}
