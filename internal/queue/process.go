package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator"
	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/mt2n/internal/config"
	"github.com/OFFIS-RIT/mt2n/internal/pipeline"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
	"github.com/OFFIS-RIT/mt2n/pkg/store"
)

// IngestJobMsg asks a worker to run the ingestion described by the
// properties file at ConfigPath.
type IngestJobMsg struct {
	JobID      string `json:"job_id" validate:"required"`
	ConfigPath string `json:"config_path" validate:"required"`
	RunID      string `json:"run_id,omitempty"`
}

// GraphBuiltMsg is published on GraphBuiltTopic after a job succeeded.
type GraphBuiltMsg struct {
	JobID    string `json:"job_id"`
	RunID    string `json:"run_id"`
	Files    int    `json:"files"`
	Vertices int    `json:"vertices"`
	Edges    int    `json:"edges"`
	Merged   int    `json:"merged"`
	Duration string `json:"duration"`
}

var validate = validator.New()

// ParseIngestJob decodes and validates a job message body.
func ParseIngestJob(body []byte) (*IngestJobMsg, error) {
	job := new(IngestJobMsg)
	if err := json.Unmarshal(body, job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	if err := validate.Struct(job); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	return job, nil
}

// ProcessParams holds the long lived collaborators of a worker.
type ProcessParams struct {
	Publisher Publisher
	Storage   store.GraphStorage
	S3        *awss3.Client

	// Locker, when set, keeps two workers from building the same explicit
	// run id concurrently.
	Locker store.RunLocker
}

// ProcessIngestMessage runs one ingestion job and announces the result.
func ProcessIngestMessage(ctx context.Context, params ProcessParams, body []byte) error {
	job, err := ParseIngestJob(body)
	if err != nil {
		return err
	}
	logger.Info("[Queue] Processing job", "job_id", job.JobID, "config", job.ConfigPath)

	cfg, err := config.Load(job.ConfigPath)
	if err != nil {
		return err
	}
	opts := pipeline.Options{
		RunID:   job.RunID,
		S3:      params.S3,
		Storage: params.Storage,
	}
	var result *pipeline.Result
	run := func(ctx context.Context) error {
		var err error
		result, err = pipeline.Run(ctx, cfg, opts)
		return err
	}
	if params.Locker != nil && job.RunID != "" {
		err = params.Locker.WithRunLock(ctx, job.RunID, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return err
	}

	event, err := json.Marshal(GraphBuiltMsg{
		JobID:    job.JobID,
		RunID:    result.Graph.RunID,
		Files:    result.Stats.Files,
		Vertices: len(result.Graph.Vertices),
		Edges:    len(result.Graph.Edges),
		Merged:   result.Stats.NodesMerged,
		Duration: pipeline.FormatDuration(result.Duration),
	})
	if err != nil {
		return err
	}
	if err := PublishTopic(params.Publisher, GraphBuiltTopic, event); err != nil {
		logger.Error("[Queue] Failed to publish completion", "job_id", job.JobID, "err", err)
	}
	return nil
}

// Settle acknowledges msg after ProcessIngestMessage returned err. A job
// interrupted because ctx was cancelled, as on worker shutdown, is requeued
// so another worker picks it up. Other failures go to HandleFailure.
func Settle(ctx context.Context, p Publisher, msg amqp091.Delivery, err error) {
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			logger.Error("[Queue] Failed to ack message", "err", ackErr)
		}
		return
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Warn("[Queue] Job interrupted, requeueing message", "err", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nackErr)
		}
		return
	}
	logger.Error("[Queue] Job failed", "err", err)
	HandleFailure(p, msg, err)
}

// HandleFailure parks a failed message in the dead letter queue together with
// the error text. The message is only acknowledged once the DLQ accepted it.
func HandleFailure(p Publisher, msg amqp091.Delivery, cause error) {
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-error"] = cause.Error()

	logger.Info("[Queue] Sending message to DLQ", "dlq", IngestDLQ)
	err := p.Publish(
		"",
		IngestDLQ,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		logger.Error("[Queue] Failed to publish to DLQ", "dlq", IngestDLQ, "err", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nackErr)
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		logger.Error("[Queue] Failed to ack message", "err", ackErr)
	}
}
