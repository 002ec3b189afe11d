package main

import (
	"context"
	"time"

	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/graphql"
	"github.com/clousec/clousec/internal/api"
	"github.com/clousec/clousec/internal/eventbus"
	"github.com/clousec/clousec/internal/kafka"
	"github.com/clousec/clousec/internal/scanner"
	"github.com/clousec/clousec/internal/scheduler"
	"github.com/clousec/clousec/restapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scheduled sweeps and event consumers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServer(cmd.Context())
	},
}

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.close(context.Background())

	logger := c.logger
	cfg := c.cfg

	var debouncer scanner.Debouncer
	if cfg.RedisURL != "" {
		redisDebouncer, err := scanner.NewRedisDebouncer(ctx, cfg.RedisURL, cfg.DebounceWindow, logger)
		if err != nil {
			logger.Warn("Redis unavailable, event debouncing disabled", zap.Error(err))
		} else {
			defer redisDebouncer.Close()
			debouncer = redisDebouncer
		}
	}

	dispatcher := scanner.NewDispatcher(c.scanner, cfg.EventQueueSize, cfg.EventWorkers, debouncer, logger)
	dispatcher.Start(ctx)

	go scheduler.New(c.scanner, cfg.ScanInterval, logger).Run(ctx)

	router := cloudevents.NewRouter()

	if cfg.KafkaEnabled() {
		_, err := kafka.RunEventProcessor(ctx, kafka.ProcessorConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaAPIKey,
			Password: cfg.KafkaAPISecret,
		}, router, dispatcher, logger)
		if err != nil {
			logger.Error("Kafka event processor not started", zap.Error(err))
		}
	}

	if cfg.NatsEnabled() {
		sub, err := eventbus.NewSubscriber(ctx, cfg.NatsURL, cfg.NatsSubject, router, dispatcher, logger)
		if err == nil {
			err = sub.Start()
			defer sub.Close()
		}
		if err != nil {
			logger.Error("NATS subscriber not started", zap.Error(err))
		}
	}

	schema, err := graphql.CreateSchema(c.store, c.view)
	if err != nil {
		return err
	}

	app := api.NewFiberApp(restapi.Services{
		Context:    ctx,
		Findings:   c.store,
		Dashboard:  c.view,
		Router:     router,
		Dispatcher: dispatcher,
		Sweeper:    c.scanner,
		Inventory:  c.provider,
		Regions:    c.scanner,
		Logger:     logger,
	}, schema)

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err = <-listenErr:
		cancel()
	case <-ctx.Done():
		logger.Info("Shutting down")
		if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
			logger.Warn("HTTP shutdown incomplete", zap.Error(shutdownErr))
		}
	}

	dispatcher.Wait()
	return err
}
