// Command rides serves the rides HTTP API as an AWS Lambda function.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/ridestore/api"
	"github.com/jacentio/ridestore/internal/config"
	"github.com/jacentio/ridestore/store"
)

var handler *api.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	rides, err := store.Open(context.Background(), cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	rides.SetLogger(logger)

	handler = api.NewHandler(rides, logger)

	logger.Info("rides handler initialized",
		"table", cfg.Store.Table,
		"entity", cfg.Store.Entity,
		"queryPartition", cfg.Store.QueryPartition,
	)
}

func main() {
	lambda.Start(handler.Handle)
}
