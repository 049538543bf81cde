package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background worker pools",
	Long:  `Start and manage background worker pools such as payment reconciliation.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Start the payment reconcile worker pool",
	Long:  `Periodically re-verify stale initialized intents and retry fulfillment of paid ones`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startReconcileWorker(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	},
}

var (
	maxWorkers int
	batchSize  int
	interval   time.Duration
)

func startReconcileWorker() error {
	ctx := context.Background()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// flags override config values when set
	cfg.Reconcile.Workers = getIntFlag(maxWorkers, cfg.Reconcile.Workers)
	cfg.Reconcile.BatchSize = getIntFlag(batchSize, cfg.Reconcile.BatchSize)
	if interval > 0 {
		cfg.Reconcile.Interval = interval
	}

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Logger.Info("starting reconcile worker",
		"workers", cfg.Reconcile.Workers,
		"batch_size", cfg.Reconcile.BatchSize,
		"interval", cfg.Reconcile.Interval,
		"stale_after", cfg.Reconcile.StaleAfter,
		"max_attempts", cfg.Reconcile.MaxAttempts)

	reconciler := app.reconciler()
	reconciler.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	app.Logger.Info("reconcile worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	app.Logger.Info("received signal, shutting down reconcile worker", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		reconciler.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		app.Logger.Info("reconcile worker pool shutdown complete")
	case <-shutdownCtx.Done():
		app.Logger.Warn("shutdown timeout reached, forcing exit")
	}
	return nil
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	reconcileWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Number of workers (overrides config)")
	reconcileWorkerCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Intents listed per sweep (overrides config)")
	reconcileWorkerCmd.Flags().DurationVar(&interval, "interval", 0, "Time between sweeps (overrides config)")

	workerCmd.AddCommand(reconcileWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
