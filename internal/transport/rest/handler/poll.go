package handler

import (
	"livepoll/internal/cache"
	"livepoll/internal/model"
	"livepoll/internal/service"
	"livepoll/internal/transport/rest/middleware"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// PollHandler handles poll endpoints
type PollHandler struct {
	classroom *service.ClassroomService
	polls     *service.PollService
	archive   cache.PollArchive
}

// NewPollHandler creates a new poll handler. archive may be nil.
func NewPollHandler(classroom *service.ClassroomService, polls *service.PollService, archive cache.PollArchive) *PollHandler {
	return &PollHandler{
		classroom: classroom,
		polls:     polls,
		archive:   archive,
	}
}

// Create handles POST /v1/polls
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	poll, err := h.classroom.CreatePoll(middleware.Actor(r.Context()), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poll)
}

// Active handles GET /v1/polls/active
func (h *PollHandler) Active(w http.ResponseWriter, r *http.Request) {
	poll := h.polls.ActivePoll()
	if poll == nil {
		writeServiceError(w, service.ErrNoActivePoll)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

// History handles GET /v1/polls/history
func (h *PollHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.classroom.PollHistory(middleware.Actor(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(history))
}

// Archive handles GET /v1/polls/archive
func (h *PollHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "poll archive is not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	polls, err := h.archive.Recent(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

// ArchivedPoll handles GET /v1/polls/archive/{pollId}
func (h *PollHandler) ArchivedPoll(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "poll archive is not configured")
		return
	}
	poll, err := h.archive.Get(r.Context(), mux.Vars(r)["pollId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if poll == nil {
		writeServiceError(w, service.ErrPollNotFound)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

// submitAnswerBody is the body of POST /v1/polls/{pollId}/answers
type submitAnswerBody struct {
	OptionID int `json:"optionId"`
}

// Answer handles POST /v1/polls/{pollId}/answers
func (h *PollHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var body submitAnswerBody
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.classroom.SubmitAnswer(middleware.Actor(r.Context()), &model.SubmitAnswerRequest{
		PollID:   mux.Vars(r)["pollId"],
		OptionID: body.OptionID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// End handles PUT /v1/polls/{pollId}/end
func (h *PollHandler) End(w http.ResponseWriter, r *http.Request) {
	poll, err := h.classroom.EndPoll(middleware.Actor(r.Context()), mux.Vars(r)["pollId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

// Results handles GET /v1/polls/{pollId}/results
func (h *PollHandler) Results(w http.ResponseWriter, r *http.Request) {
	poll, err := h.polls.PollResults(mux.Vars(r)["pollId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

// Stats handles GET /v1/polls/{pollId}/stats
func (h *PollHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.polls.PollStats(mux.Vars(r)["pollId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
