//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitsambajwa-iss/Checkoutly/internal/audit"
	"github.com/aitsambajwa-iss/Checkoutly/internal/inventory"
	"github.com/aitsambajwa-iss/Checkoutly/internal/llm"
	"github.com/aitsambajwa-iss/Checkoutly/internal/memory"
	"github.com/aitsambajwa-iss/Checkoutly/internal/orchestrator"
	"github.com/aitsambajwa-iss/Checkoutly/internal/redact"
	"github.com/aitsambajwa-iss/Checkoutly/internal/server"
	"github.com/aitsambajwa-iss/Checkoutly/internal/tools"
	"github.com/aitsambajwa-iss/Checkoutly/internal/vault"
	"github.com/aitsambajwa-iss/Checkoutly/internal/workflow"
)

const (
	testVaultKey   = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testSealKey    = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
	testSigningKey = "integration-signing-key-32-bytes!!"
)

// mockModel answers like the OpenAI API: a tool call when tools are offered
// and the shopper asks about shoes, otherwise plain text.
type mockModel struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
}

func (m *mockModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	last := req.Messages[len(req.Messages)-1].Content
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
	switch {
	case len(req.Tools) > 0 && strings.Contains(last, "shoes"):
		msg.ToolCalls = []openai.ToolCall{{
			ID:       "call_1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "search_inventory", Arguments: `{"query":"running"}`},
		}}
	case len(req.Tools) == 0:
		msg.Content = "We have the **[PRODUCT:Trail Runner]** for $89.99."
	default:
		msg.Content = "Thanks, I've noted that securely."
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		Model:   req.Model,
		Choices: []openai.ChatCompletionChoice{{Message: msg}},
		Usage:   openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
}

func (m *mockModel) Requests() []openai.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]openai.ChatCompletionRequest(nil), m.requests...)
}

type stack struct {
	url    string
	model  *mockModel
	tokens *vault.SQLiteStore
	audit  *audit.SQLiteStore
	logger *audit.Logger
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	tokens, err := vault.NewSQLiteStore(filepath.Join(dir, "vault.db"), testVaultKey)
	require.NoError(t, err)
	t.Cleanup(func() { tokens.Close() })

	auditStore, err := audit.NewSQLiteStore(filepath.Join(dir, "audit.db"), testSigningKey, testSealKey)
	require.NoError(t, err)
	t.Cleanup(func() { auditStore.Close() })

	catalog, err := inventory.NewSQLiteStore(filepath.Join(dir, "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	require.NoError(t, catalog.Seed(ctx, []inventory.Product{
		{ID: "p1", Name: "Trail Runner", Description: "Lightweight running shoe", Price: decimal.RequireFromString("89.99"), Sizes: []string{"9"}},
		{ID: "p2", Name: "Canvas Tote", Price: decimal.RequireFromString("19.50")},
	}))

	mem, err := memory.NewLocalStore(100, time.Hour)
	require.NoError(t, err)

	model := &mockModel{}
	modelSrv := httptest.NewServer(model)
	t.Cleanup(modelSrv.Close)

	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(backendSrv.Close)

	policy, err := tools.NewPolicy(ctx, nil)
	require.NoError(t, err)
	backend := workflow.NewClient(workflow.Config{BaseURL: backendSrv.URL, Timeout: 5 * time.Second})
	logger := audit.NewLogger(auditStore)

	orch := orchestrator.New(orchestrator.Config{
		Provider:   llm.NewOpenAIProviderWithBaseURL("sk-test", modelSrv.URL),
		Redactor:   redact.MustNew(redact.WithVault(tokens)),
		Dispatcher: tools.NewDispatcher(tools.NewDefaultRegistry(catalog, mem, backend), policy),
		Memory:     mem,
		Audit:      logger,
		Model:      "gpt-4",
	})

	app := httptest.NewServer(server.NewServer(orch).Routes())
	t.Cleanup(app.Close)

	return &stack{url: app.URL, model: model, tokens: tokens, audit: auditStore, logger: logger}
}

func postChat(t *testing.T, url, body string) (int, orchestrator.Reply) {
	t.Helper()
	resp, err := http.Post(url+"/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var reply orchestrator.Reply
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	}
	return resp.StatusCode, reply
}

func TestChatFlow_CardIsRedactedVaultedAndAudited(t *testing.T) {
	s := newStack(t)

	status, reply := postChat(t, s.url, `{"message":"my card is 4111 1111 1111 1111","sessionId":"chat-card"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "chat-card", reply.ChatID)
	assert.Equal(t, 1, reply.TokensApplied)

	// The model only ever saw the token.
	for _, req := range s.model.Requests() {
		for _, m := range req.Messages {
			assert.NotContains(t, m.Content, "4111")
		}
	}

	n, err := s.tokens.Count(context.Background(), "chat-card")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.logger.Close(ctx))

	records, err := s.audit.List(context.Background(), audit.Filter{ChatID: "chat-card"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"card"}, records[0].TokensApplied)
	assert.True(t, strings.HasPrefix(records[0].SanitizedContent, "[CARD:tok_"))

	valid, err := s.audit.Verify(context.Background(), records[0].ID)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestChatFlow_InventorySearchIsNarrated(t *testing.T) {
	s := newStack(t)

	status, reply := postChat(t, s.url, `{"message":"do you have running shoes?","sessionId":"chat-shoes"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, reply.Response, "[PRODUCT:Trail Runner]")
	assert.Zero(t, reply.TokensApplied)

	reqs := s.model.Requests()
	require.Len(t, reqs, 2, "selection then narration")
	assert.NotEmpty(t, reqs[0].Tools)
	assert.Empty(t, reqs[1].Tools)

	var narrationInput string
	for _, m := range reqs[1].Messages {
		if m.Role == openai.ChatMessageRoleAssistant {
			narrationInput = m.Content
		}
	}
	assert.Contains(t, narrationInput, "search_inventory")
	assert.Contains(t, narrationInput, "Trail Runner")
	assert.NotContains(t, narrationInput, "Canvas Tote")
}

func TestChatFlow_RejectsEmptyMessage(t *testing.T) {
	s := newStack(t)
	status, _ := postChat(t, s.url, `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Empty(t, s.model.Requests())
}
