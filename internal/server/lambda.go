package server

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"
)

// LambdaHandler replays API Gateway HTTP API (payload v2) events through an
// http.Handler so the Lambda and the server share one router.
type LambdaHandler struct {
	adapter *httpadapter.HandlerAdapterV2
}

// NewLambdaHandler wraps h, usually (*Server).Routes().
func NewLambdaHandler(h http.Handler) *LambdaHandler {
	return &LambdaHandler{adapter: httpadapter.NewV2(h)}
}

// Handle is the lambda.Start entry point. An event that cannot be turned into
// a request gets a 400 rather than an invocation error.
func (l *LambdaHandler) Handle(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := l.adapter.ProxyWithContext(ctx, ev)
	if err != nil {
		log.Warn().Err(err).Str("path", ev.RawPath).Msg("lambda_event_rejected")
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"Invalid request"}`,
		}, nil
	}
	return resp, nil
}
