// Command worker applies order messages to the Orders table.
//
// By default it runs as an AWS Lambda SQS handler reporting partial batch
// failures. The SQS event source mapping must enable ReportBatchItemFailures
// (FunctionResponseTypes: ["ReportBatchItemFailures"]); otherwise Lambda
// treats every returned batch as fully processed and failed messages are
// dropped. With -poll it long-polls the orders queue itself.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/jacentio/storefront/internal/config"
	"github.com/jacentio/storefront/internal/metrics"
	"github.com/jacentio/storefront/queue"
	"github.com/jacentio/storefront/store"
	"github.com/jacentio/storefront/worker"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	poll       = flag.Bool("poll", false, "poll the orders queue instead of running as a Lambda handler")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.App, os.Stdout)
	slog.SetDefault(logger)

	awsCfg, err := config.LoadAWS(context.Background(), cfg.AWS)
	if err != nil {
		logger.Error("load aws config", "error", err)
		os.Exit(1)
	}

	entities := store.New(dynamodb.NewFromConfig(awsCfg), cfg.StoreConfig(), logger.With("component", "store"))
	handler := worker.NewHandler(entities, cfg.WorkerConfig(), metrics.NewCollector(cfg.App.Name), logger.With("component", "worker"))

	if !*poll {
		lambda.Start(handler.HandleSQS)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orders := queue.New(sqs.NewFromConfig(awsCfg), cfg.QueueConfig(), logger.With("component", "queue"))
	poller := worker.NewPoller(handler, orders, cfg.WorkerConfig(), logger.With("component", "poller"))

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("poller exited", "error", err)
		os.Exit(1)
	}
}
