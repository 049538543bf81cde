package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/pharmacy-management/internal/core/events"
	"github.com/frahmantamala/pharmacy-management/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event bus commands",
	Long:  `Inspect the payment event handlers without a database.`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a sample payment event",
	Long:      `Publish a sample payment event to the registered handlers for debugging`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{events.EventTypePaymentPaid, events.EventTypePaymentFailed, events.EventTypePaymentFulfillmentFailed},
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishSampleEvent(cmd.Context(), args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var eventReference string

// registerEventHandlers subscribes the operator-facing handlers of payment
// events.
func registerEventHandlers(bus *events.EventBus, lg *slog.Logger) {
	bus.Subscribe(events.EventTypePaymentPaid, func(ctx context.Context, event events.Event) error {
		paid, ok := event.(*events.PaymentPaidEvent)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.EventType())
		}
		logger.FromOr(ctx, lg).Info("payment confirmed",
			"event_id", paid.EventID(),
			"reference", paid.Reference,
			"purpose", paid.Purpose,
			"amount", paid.Amount.StringFixed(2),
			"currency", paid.Currency,
			"source", paid.Source)
		return nil
	})

	bus.Subscribe(events.EventTypePaymentFailed, func(ctx context.Context, event events.Event) error {
		failed, ok := event.(*events.PaymentFailedEvent)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.EventType())
		}
		logger.FromOr(ctx, lg).Info("payment failed at gateway",
			"event_id", failed.EventID(),
			"reference", failed.Reference,
			"gateway_status", failed.GatewayStatus)
		return nil
	})

	bus.Subscribe(events.EventTypePaymentFulfillmentFailed, func(ctx context.Context, event events.Event) error {
		failed, ok := event.(*events.FulfillmentFailedEvent)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.EventType())
		}
		logger.FromOr(ctx, lg).Error("paid intent needs operator attention",
			"event_id", failed.EventID(),
			"reference", failed.Reference,
			"purpose", failed.Purpose,
			"attempts", failed.Attempts,
			"failure_reason", failed.FailureReason,
			"needs_attention", true)
		return nil
	})
}

func publishSampleEvent(ctx context.Context, eventType string) error {
	lg := logger.LoggerWrapper()
	bus := events.NewEventBus(lg)
	registerEventHandlers(bus, lg)

	var event events.Event
	switch eventType {
	case events.EventTypePaymentPaid:
		event = events.NewPaymentPaidEvent(eventReference, "sale", decimal.NewFromInt(20), "NGN", "cli")
	case events.EventTypePaymentFailed:
		event = events.NewPaymentFailedEvent(eventReference, "abandoned")
	case events.EventTypePaymentFulfillmentFailed:
		event = events.NewFulfillmentFailedEvent(eventReference, "sale", "sample failure", 1)
	default:
		return fmt.Errorf("unknown event type %q", eventType)
	}

	lg.Info("publishing sample event", "event_type", eventType, "event_id", event.EventID())
	if err := bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	bus.Wait()
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventReference, "reference", "ref_sample", "payment reference carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
