package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"artisan-storefront/internal/broker"
	"artisan-storefront/internal/util"
	"artisan-storefront/internal/worker"

	"github.com/spf13/cobra"
)

var consumerGroup string

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Tail storefront events from Kafka into the log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("no Kafka brokers configured")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, consumerGroup)
		w := worker.NewAuditWorker(consumer, util.Named("audit"))
		defer w.Stop()

		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)

	consumeCmd.Flags().StringVar(&consumerGroup, "group", "storefront-audit", "Kafka consumer group")
}
