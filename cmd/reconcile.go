package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/pharmacy-management/internal/payment"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Operator commands for a single payment intent",
}

var reconcileVerifyCmd = &cobra.Command{
	Use:   "verify <reference>",
	Short: "Re-check an intent with the gateway and confirm it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd.Context(), func(ctx context.Context, app *application) error {
			resp, err := app.Payments.Reconcile(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(resp)
		})
	},
}

var reconcileFulfillCmd = &cobra.Command{
	Use:   "fulfill <reference>",
	Short: "Retry fulfillment of a paid intent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd.Context(), func(ctx context.Context, app *application) error {
			// pharmacy 0 is the operator scope: any tenant's intent
			view, err := app.Payments.RetryFulfillment(ctx, 0, args[0], payment.SourceManual)
			if err != nil {
				return err
			}
			return printJSON(view)
		})
	},
}

func withApplication(ctx context.Context, fn func(context.Context, *application) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	reconcileCmd.AddCommand(reconcileVerifyCmd)
	reconcileCmd.AddCommand(reconcileFulfillCmd)

	rootCmd.AddCommand(reconcileCmd)
}
