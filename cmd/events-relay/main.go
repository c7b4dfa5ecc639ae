package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docledger/internal/amqp"
	"docledger/internal/cli"
	"docledger/internal/config"
	applog "docledger/internal/log"
	"docledger/internal/relay"
	"docledger/internal/transport"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("Relay stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Relay stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := transport.NewHTTPClient(cfg.HTTPTimeout)
	sink := transport.NewAnalytics(cfg.AnalyticsBaseURL, cfg.AnalyticsTable, httpClient).
		WithSource("backend", "relay")

	// Without a broker accepted events are inserted inline
	var publisher relay.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - inserting events directly", "analytics_url", cfg.AnalyticsBaseURL)
	}

	srv := relay.NewServer(":"+cfg.Port, publisher, sink, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting events relay", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if amqpClient != nil {
		consumer := relay.NewConsumer(sink, logger)
		g.Go(func() error {
			err := amqpClient.ConsumeWithReconnect(gctx, consumer.HandleEventMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down events relay", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
