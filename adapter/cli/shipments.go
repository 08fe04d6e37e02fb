package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var shipmentsCmd = &cobra.Command{
	Use:   "shipments",
	Short: "Manage shipment tracking",
}

var shipmentsReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one shipment reconciliation cycle",
	Long: `Polls the carrier for every open shipment, applies status changes and
fires notifications for delivery and first movement.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deps.Reconciler == nil {
			return fmt.Errorf("shipment reconciler is not configured")
		}
		result, err := deps.Reconciler.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("polled: %d  updated: %d  transitions: %d  not_found: %d  skipped: %d  failed: %d\n",
			result.Polled, result.Updated, result.Transitions, result.NotFound, result.Skipped, result.Failed)
		return nil
	},
}

var shipmentsTrackCmd = &cobra.Command{
	Use:   "track <tracking-number>",
	Short: "Query the carrier for a single tracking number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if deps.Tracker == nil {
			return fmt.Errorf("tracking provider is not configured")
		}
		if deps.Shipments != nil {
			shipment, err := deps.Shipments.FindByTrackingNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if shipment != nil {
				fmt.Printf("order: %s  stored status: %s\n", shipment.OrderNumber, shipment.Status)
			}
		}
		result, err := deps.Tracker.Track(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if result == nil {
			fmt.Println("carrier does not know this tracking number")
			return nil
		}
		fmt.Printf("status: %s\n", result.Status)
		if result.EstimatedDelivery != nil {
			fmt.Printf("estimated delivery: %s\n", result.EstimatedDelivery.Format("2006-01-02 15:04"))
		}
		for _, event := range result.Events {
			fmt.Printf("  %s  %-18s %s", event.Timestamp.Format("2006-01-02 15:04"), event.StatusCode, event.Description)
			if event.Location != "" {
				fmt.Printf(" (%s)", event.Location)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	shipmentsCmd.AddCommand(shipmentsReconcileCmd)
	shipmentsCmd.AddCommand(shipmentsTrackCmd)
	rootCmd.AddCommand(shipmentsCmd)
}
