package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/mt2n/internal/config"
	"github.com/OFFIS-RIT/mt2n/internal/pipeline"
	"github.com/OFFIS-RIT/mt2n/internal/queue"
	"github.com/OFFIS-RIT/mt2n/internal/storage"
	"github.com/OFFIS-RIT/mt2n/internal/util"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
	"github.com/OFFIS-RIT/mt2n/pkg/logger/console"
	pgxstore "github.com/OFFIS-RIT/mt2n/pkg/store/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Format: util.GetEnv("LOG_FORMAT"),
	})
	logger.Init(consoleLogger)

	params := queue.ProcessParams{}

	// Init s3 client, only when the worker is pointed at a bucket
	if region := util.GetEnv(config.KeyAWSRegion); region != "" {
		client, err := storage.NewS3Client(ctx, storage.NewS3ClientParams{
			Region:    region,
			Endpoint:  util.GetEnv(config.KeyAWSEndpoint),
			AccessKey: util.GetEnv(config.KeyAWSAccessKey),
			SecretKey: util.GetEnv(config.KeyAWSSecretKey),
		})
		if err != nil {
			logger.Fatal("Could not create S3 client", "err", err)
		}
		params.S3 = client
	}

	// Init database sink
	if dbURL := util.GetEnv(config.KeyDatabaseURL); dbURL != "" {
		pool, err := pgxstore.Connect(ctx, dbURL)
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}
		defer pool.Close()
		params.Storage = pgxstore.NewGraphDBStorageWithConnection(pool)
		params.Locker = pgxstore.NewRunLocker(pool, pgxstore.DefaultLeaseTTL)
	}

	// Init rabbitmq
	conn, err := queue.Init(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	params.Publisher = ch

	// One job at a time, a run can hold a large graph in memory
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := ch.Consume(
		queue.IngestQueue,
		queue.IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.IngestQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.IngestQueue)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.IngestQueue)
				return
			}
			startTime := time.Now()
			err := queue.ProcessIngestMessage(ctx, params, msg.Body)
			queue.Settle(ctx, ch, msg, err)
			logger.Info("Processing time", "duration", pipeline.FormatDuration(time.Since(startTime)))
			logger.Info("Waiting for next message")
		}
	}
}

