package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/aitsambajwa-iss/Checkoutly/internal/orchestrator"
	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
	"github.com/aitsambajwa-iss/Checkoutly/internal/requestctx"
)

// chatRequest accepts both the widget's and the workflow tool's field names.
type chatRequest struct {
	Message   string `json:"message"`
	ChatInput string `json:"chatInput"`
	ChatID    string `json:"chatId"`
	SessionID string `json:"sessionId"`
}

func (c chatRequest) text() string {
	if strings.TrimSpace(c.Message) != "" {
		return c.Message
	}
	return c.ChatInput
}

// chatID picks the conversation id: explicit chatId, then sessionId, then
// the X-Chat-ID header, else a fresh one.
func (c chatRequest) chatID(r *http.Request) string {
	for _, id := range []string{c.ChatID, c.SessionID, r.Header.Get("X-Chat-ID")} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return requestctx.NewChatID()
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	msg := req.text()
	if strings.TrimSpace(msg) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	chatID := req.chatID(r)
	turnID := middleware.GetReqID(r.Context())
	if turnID == "" {
		turnID = requestctx.NewTurnID()
	}
	ctx := requestctx.WithChat(r.Context(), chatID, turnID)

	start := time.Now()
	reply, err := s.chat.HandleTurn(ctx, orchestrator.Turn{ChatID: chatID, Message: msg})
	if errors.Is(err, orchestrator.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Func(checkoutlyotel.LogTraceFields(ctx)).Msg("chat_turn_failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Info().
		Str("chat_id", chatID).
		Str("turn_id", turnID).
		Int("tokens_applied", reply.TokensApplied).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Func(checkoutlyotel.LogTraceFields(ctx)).
		Msg("chat_turn_completed")
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Checkoutly chat service ready\n"))
}
