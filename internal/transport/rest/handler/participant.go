package handler

import (
	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ParticipantHandler handles participant directory endpoints
type ParticipantHandler struct {
	users     *service.UserService
	classroom *service.ClassroomService
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(users *service.UserService, classroom *service.ClassroomService) *ParticipantHandler {
	return &ParticipantHandler{users: users, classroom: classroom}
}

// Create handles POST /v1/participants
func (h *ParticipantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := h.users.Create(&req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /v1/participants. With ?q= it searches every known
// participant; otherwise it lists the online roster, optionally by ?role=.
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if query := q.Get("q"); query != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		writeJSON(w, http.StatusOK, nonNil(h.users.Search(query, limit)))
		return
	}

	var role model.Role
	if raw := q.Get("role"); raw != "" {
		parsed, ok := model.ParseRole(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		role = parsed
	}
	writeJSON(w, http.StatusOK, nonNil(h.users.Online(role)))
}

// Stats handles GET /v1/participants/stats
func (h *ParticipantHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.users.Stats())
}

// Get handles GET /v1/participants/{id}
func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.Get(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Rename handles PUT /v1/participants/{id}
func (h *ParticipantHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req model.RenameParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	p, err := h.classroom.Rename(middleware.Actor(r.Context()), mux.Vars(r)["id"], req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Kick handles DELETE /v1/participants/{id}
func (h *ParticipantHandler) Kick(w http.ResponseWriter, r *http.Request) {
	p, err := h.classroom.Kick(middleware.Actor(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
