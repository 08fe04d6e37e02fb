// Package cli implements the operational command line interface. The commands
// run the scheduled jobs once, for cron-style deployments and manual replays.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	ordersapp "github.com/blisterpost/blisterpost/internal/orders/application"
	shipmentsapp "github.com/blisterpost/blisterpost/internal/shipments/application"
	shipmentsdomain "github.com/blisterpost/blisterpost/internal/shipments/domain"
	subsapp "github.com/blisterpost/blisterpost/internal/subscriptions/application"
)

var (
	verbose bool
	logger  *slog.Logger
	deps    Dependencies
)

// Dependencies holds the wired services the commands run.
type Dependencies struct {
	Generator  *ordersapp.Generator
	Reconciler *shipmentsapp.Reconciler
	Reminders  *subsapp.ReminderService
	Tracker    shipmentsdomain.TrackingProvider
	Shipments  shipmentsdomain.ShipmentRepository
}

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blisterpost",
	Short: "BlisterPost - recurring medication blister fulfillment",
	Long: `BlisterPost generates recurring blister orders for active
subscriptions and reconciles shipment tracking against the carrier.

Each subcommand runs one job cycle and exits, so the binary can be
driven by cron or invoked manually for replays.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		ctx := cmd.Context()
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		cmd.SetContext(context.WithValue(ctx, commandContextKey{}, info))
		logger.Info("command start",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
		)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.Info("command end",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// SetDependencies wires the services the commands run.
func SetDependencies(d Dependencies) {
	deps = d
}
