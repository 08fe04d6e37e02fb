package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Manage blister orders",
}

var ordersGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one order generation cycle",
	Long: `Creates the next blister order for every active subscription whose
current period ends tomorrow. Safe to re-run: existing orders are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deps.Generator == nil {
			return fmt.Errorf("order generator is not configured")
		}
		result, err := deps.Generator.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("candidates: %d  created: %d  skipped: %d  failed: %d\n",
			result.Candidates, result.Created, result.Skipped, result.Failed)
		if result.Failed > 0 {
			return fmt.Errorf("%d subscription(s) failed, see logs", result.Failed)
		}
		return nil
	},
}

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Run one subscription reminder cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		if deps.Reminders == nil {
			return fmt.Errorf("reminder service is not configured")
		}
		result, err := deps.Reminders.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("subscription_ending: %d  trial_ending: %d  failed: %d\n",
			result.SubscriptionEnding, result.TrialEnding, result.Failed)
		return nil
	},
}

func init() {
	ordersCmd.AddCommand(ordersGenerateCmd)
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(remindersCmd)
}
