// Command projector is a Lambda that projects cart table changes from the
// DynamoDB Kinesis stream into the cart activity view. The table stream
// must carry old images so that removals still know their user.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/itservices-cart/internal/config"
	"github.com/example/itservices-cart/internal/infrastructure/kinesis"
	"github.com/example/itservices-cart/internal/infrastructure/store"
	"github.com/example/itservices-cart/internal/projection"
	"go.uber.org/zap"
)

var (
	projector *projection.Projector
	logger    *zap.Logger
)

func init() {
	cfg, err := config.Load(os.Getenv("CART_CONFIG"), os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err = cfg.Log.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	if cfg.Remote.DatabaseURL == "" {
		logger.Fatal("activity database not configured", zap.Error(config.ErrMissingDatabase))
	}

	db, err := store.ConnectPostgres(context.Background(), cfg.Remote.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	projector = projection.NewProjector(store.NewPostgresActivityStore(db), logger)
	logger.Info("lambda projector initialized")
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	logger.Debug("received records", zap.Int("count", len(kinesisEvent.Records)))

	var batchItemFailures []events.KinesisBatchItemFailure
	fail := func(record events.KinesisEventRecord, msg string, err error) {
		logger.Warn(msg, zap.String("event_id", record.EventID), zap.Error(err))
		batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{
			ItemIdentifier: record.Kinesis.SequenceNumber,
		})
	}

	for _, record := range kinesisEvent.Records {
		event, err := kinesis.ConvertFromKinesisRecord(record)
		if err != nil {
			fail(record, "failed to convert record", err)
			continue
		}
		if event == nil {
			continue
		}

		eventJSON, err := json.Marshal(event)
		if err != nil {
			fail(record, "failed to marshal event", err)
			continue
		}

		if err := projector.HandleEvent(ctx, []byte(event.AggregateID), eventJSON); err != nil {
			fail(record, "failed to project event", err)
			continue
		}
	}

	if len(batchItemFailures) > 0 {
		logger.Warn("batch had failures", zap.Int("failed", len(batchItemFailures)))
	}

	return events.KinesisEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func main() {
	lambda.Start(handler)
}
