package handler

import (
	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"
	"net/http"
	"strconv"
	"time"
)

// ChatHandler handles chat endpoints
type ChatHandler struct {
	chat      *service.ChatService
	users     *service.UserService
	classroom *service.ClassroomService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService, users *service.UserService, classroom *service.ClassroomService) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		users:     users,
		classroom: classroom,
	}
}

// History handles GET /v1/chat/history?limit=&before=. before is RFC 3339
// or unix milliseconds.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	var before time.Time
	if raw := q.Get("before"); raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			before = time.UnixMilli(ms)
		} else if t, err := time.Parse(time.RFC3339, raw); err == nil {
			before = t
		} else {
			writeError(w, http.StatusBadRequest, "invalid before timestamp")
			return
		}
	}

	writeJSON(w, http.StatusOK, h.chat.History(limit, before))
}

// Send handles POST /v1/chat/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	msg, err := h.classroom.SendMessage(middleware.Actor(r.Context()), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Participants handles GET /v1/chat/participants
func (h *ChatHandler) Participants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.users.Online("")))
}

// Stats handles GET /v1/chat/stats
func (h *ChatHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chat.Stats())
}
