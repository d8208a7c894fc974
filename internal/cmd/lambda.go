package cmd

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/aitsambajwa-iss/Checkoutly/internal/server"
)

// RunLambda serves POST /chat as an API Gateway HTTP API (payload v2)
// function. Configuration comes from the environment only.
func RunLambda() error {
	initConfig()
	setupLogging()

	ctx := context.Background()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(p.orchestrator, serverOptions(cfg)...)
	lambda.Start(server.NewLambdaHandler(srv.Routes()).Handle)
	return nil
}
