package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudops-tools/quota-notifier/internal/config"
)

var throttleCmd = &cobra.Command{
	Use:   "throttle",
	Short: "Inspect and manage throttle records",
}

var throttleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recipients with their last notification time",
	RunE:  runThrottleList,
}

var throttleResetCmd = &cobra.Command{
	Use:   "reset <email>",
	Short: "Clear a recipient's cooldown so they are immediately eligible again",
	Args:  cobra.ExactArgs(1),
	RunE:  runThrottleReset,
}

func init() {
	rootCmd.AddCommand(throttleCmd)
	throttleCmd.AddCommand(throttleListCmd)
	throttleCmd.AddCommand(throttleResetCmd)
}

func runThrottleList(_ *cobra.Command, _ []string) error {
	// Only the storage path is needed; skip full config validation.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No throttle records.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tLAST SENT\tAGE")
	now := time.Now().UTC()
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			r.Email,
			r.LastSent.Format(time.RFC3339),
			now.Sub(r.LastSent).Round(time.Minute))
	}
	return w.Flush()
}

func runThrottleReset(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	email := args[0]
	if err := store.Reset(context.Background(), email); err != nil {
		return err
	}
	fmt.Printf("Cleared throttle record for %s\n", email)
	return nil
}
