// Command logshipper moves request logs from the Kafka logs topic into
// Elasticsearch.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go_trial/foodhub/config"
	"go_trial/foodhub/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := utils.Component(utils.NewLogger(cfg.LogLevel, cfg.LogFormat), "logshipper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shipper, err := utils.NewLogShipper(utils.ShipperConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaLogsTopic,
		ESURL:   cfg.ElasticsearchURL,
	}, log)
	if err != nil {
		log.Error("create shipper", "error", err)
		os.Exit(1)
	}

	log.Info("shipping logs", "topic", cfg.KafkaLogsTopic, "elasticsearch", cfg.ElasticsearchURL)
	if err := shipper.Run(ctx); err != nil {
		log.Error("shipper stopped", "error", err)
		os.Exit(1)
	}
}
