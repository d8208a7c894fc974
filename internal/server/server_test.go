package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitsambajwa-iss/Checkoutly/internal/orchestrator"
	"github.com/aitsambajwa-iss/Checkoutly/internal/requestctx"
)

type fakeChat struct {
	mu    sync.Mutex
	turns []orchestrator.Turn
	turn  string
	err   error
}

func (f *fakeChat) HandleTurn(ctx context.Context, turn orchestrator.Turn) (*orchestrator.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	f.turn = requestctx.TurnID(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Reply{Response: "echo: " + turn.Message, ChatID: turn.ChatID, TokensApplied: 1}, nil
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestChat_Success(t *testing.T) {
	chat := &fakeChat{}
	h := NewServer(chat).Routes()

	rec := doRequest(t, h, http.MethodPost, "/chat", `{"message":"hello","sessionId":"s-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "echo: hello", body["response"])
	assert.Equal(t, "s-1", body["chatId"])
	assert.EqualValues(t, 1, body["tokensApplied"])

	require.Len(t, chat.turns, 1)
	assert.Equal(t, "s-1", chat.turns[0].ChatID)
	assert.NotEmpty(t, chat.turn, "request id becomes the turn id")
}

func TestChat_ChatIDResolution(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers map[string]string
		want    string
	}{
		{"chatId wins", `{"message":"hi","chatId":"c-1","sessionId":"s-1"}`, nil, "c-1"},
		{"sessionId", `{"chatInput":"hi","sessionId":"s-1"}`, nil, "s-1"},
		{"header", `{"message":"hi"}`, map[string]string{"X-Chat-ID": "h-1"}, "h-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{}
			rec := doRequest(t, NewServer(chat).Routes(), http.MethodPost, "/chat", tt.body, tt.headers)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, chat.turns[0].ChatID)
		})
	}

	chat := &fakeChat{}
	rec := doRequest(t, NewServer(chat).Routes(), http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(chat.turns[0].ChatID, requestctx.ChatIDPrefix))
}

func TestChat_ChatInputFallback(t *testing.T) {
	chat := &fakeChat{}
	rec := doRequest(t, NewServer(chat).Routes(), http.MethodPost, "/chat", `{"message":"  ","chatInput":"from workflow"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from workflow", chat.turns[0].Message)
}

func TestChat_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty object", `{}`, "Message is required"},
		{"blank message", `{"message":"   "}`, "Message is required"},
		{"malformed", `{"message":`, "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{}
			rec := doRequest(t, NewServer(chat).Routes(), http.MethodPost, "/chat", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode(t, rec)["error"])
			assert.Empty(t, chat.turns)
		})
	}
}

func TestChat_HandlerError(t *testing.T) {
	chat := &fakeChat{err: errors.New("boom")}
	rec := doRequest(t, NewServer(chat).Routes(), http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])

	chat = &fakeChat{err: orchestrator.ErrEmptyMessage}
	rec = doRequest(t, NewServer(chat).Routes(), http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_RateLimited(t *testing.T) {
	h := NewServer(&fakeChat{}, WithRateLimiter(NewRateLimiter(0.001, 2))).Routes()

	for i := 0; i < 2; i++ {
		rec := doRequest(t, h, http.MethodPost, "/chat", `{"message":"hi"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doRequest(t, h, http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", decode(t, rec)["error"])
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Another client has its own bucket.
	rec = doRequest(t, h, http.MethodPost, "/chat", `{"message":"hi"}`, map[string]string{"X-Real-IP": "203.0.113.9"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health is never limited.
	rec = doRequest(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRateLimiter_Disabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0, 10))
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, NewServer(&fakeChat{}, WithVersion("1.2.3")).Routes(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestCORS(t *testing.T) {
	h := NewServer(&fakeChat{}, WithCORSOrigins([]string{"https://shop.example.com"})).Routes()

	rec := doRequest(t, h, http.MethodOptions, "/chat", "", map[string]string{"Origin": "https://shop.example.com"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Chat-ID")

	rec = doRequest(t, h, http.MethodPost, "/chat", `{"message":"hi"}`, map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = doRequest(t, NewServer(&fakeChat{}).Routes(), http.MethodGet, "/health", "", map[string]string{"Origin": "https://any.example.com"})
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLambdaHandler(t *testing.T) {
	chat := &fakeChat{}
	lh := NewLambdaHandler(NewServer(chat).Routes())

	ev := events.APIGatewayV2HTTPRequest{
		RawPath: "/chat",
		Headers: map[string]string{"content-type": "application/json"},
		Body:    `{"message":"hi from lambda","sessionId":"lam-1"}`,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			DomainName: "abc.execute-api.eu-west-1.amazonaws.com",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   http.MethodPost,
				Path:     "/chat",
				SourceIP: "198.51.100.7",
			},
		},
	}
	resp, err := lh.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	var body orchestrator.Reply
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "echo: hi from lambda", body.Response)
	assert.Equal(t, "lam-1", body.ChatID)

	// API Gateway lowercases header names.
	ev.Body = `{"message":"again"}`
	ev.Headers = map[string]string{"content-type": "application/json", "x-chat-id": "hdr-7"}
	resp, err = lh.Handle(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "hdr-7", body.ChatID)
}

func TestLambdaHandler_Base64AndErrors(t *testing.T) {
	lh := NewLambdaHandler(NewServer(&fakeChat{}).Routes())

	resp, err := lh.Handle(context.Background(), events.APIGatewayV2HTTPRequest{
		RawPath:         "/chat",
		Body:            "eyJtZXNzYWdlIjoiIn0=", // {"message":""}
		IsBase64Encoded: true,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodPost},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Message is required"}`, resp.Body)

	resp, err = lh.Handle(context.Background(), events.APIGatewayV2HTTPRequest{
		RawPath:         "/chat",
		Body:            "%%%not-base64",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = lh.Handle(context.Background(), events.APIGatewayV2HTTPRequest{RawPath: "/health"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
