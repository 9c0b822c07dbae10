package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single evaluation pass now",
	Long: `Check evaluates every organization once and exits. With --dry-run the
pass logs its decisions but sends nothing and records nothing.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("dry-run", false, "evaluate without sending or recording")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx := context.Background()
	al, store, err := initAlerter(ctx, cfg, dryRun, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := al.RunPass(ctx)
	if err != nil {
		return err
	}
	logger.Info("pass complete",
		"orgs_evaluated", stats.OrgsEvaluated,
		"orgs_skipped", stats.OrgsSkipped,
		"orgs_alerted", stats.OrgsAlerted,
		"sends_attempted", stats.SendsAttempted,
		"sends_succeeded", stats.SendsSucceeded,
		"sends_throttled", stats.SendsThrottled,
		"send_failures", stats.SendFailures)
	return nil
}
