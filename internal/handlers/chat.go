package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/services"
)

// ChatHandler relays chat messages to the LLM completion endpoint.
type ChatHandler struct {
	chat   *services.ChatService
	logger zerolog.Logger
}

func NewChatHandler(chat *services.ChatService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// ChatRouter registers the chat relay route.
func ChatRouter(r chi.Router, handler *ChatHandler, guard *Guard) {
	r.With(guard.RequireVerified()).Post("/", handler.Relay)
}

type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	// Context is free-text workspace context the client chooses to attach.
	Context string `json:"context"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

func (h *ChatHandler) Relay(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.chat.Reply(r.Context(), req.Message, req.Context)
	if err != nil {
		h.logger.Error().Err(err).Msg("chat relay failed")
		writeError(w, http.StatusBadGateway, "assistant is unavailable")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: reply})
}
