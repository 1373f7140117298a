package handler

import (
	"context"
	"encoding/json"
	"errors"
	"livepoll/internal/model"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

type fakeArchive struct {
	polls map[string]*model.Poll
	err   error
}

func (f *fakeArchive) Archive(ctx context.Context, poll *model.Poll) error {
	f.polls[poll.ID] = poll
	return nil
}

func (f *fakeArchive) Get(ctx context.Context, pollID string) (*model.Poll, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.polls[pollID], nil
}

func (f *fakeArchive) Recent(ctx context.Context, n int) ([]*model.Poll, error) {
	return nil, f.err
}

func TestPollHandler_ArchivedPoll(t *testing.T) {
	archive := &fakeArchive{polls: map[string]*model.Poll{
		"p1": {ID: "p1", Question: "Capital of France?", State: model.PollClosed},
	}}

	tests := []struct {
		name       string
		archive    *fakeArchive
		pollID     string
		wantStatus int
		wantReason string
	}{
		{"found", archive, "p1", http.StatusOK, ""},
		{"missing", archive, "nope", http.StatusNotFound, "poll_not_found"},
		{"redis down", &fakeArchive{err: errors.New("connection refused")}, "p1", http.StatusInternalServerError, "internal_error"},
		{"not configured", nil, "p1", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPollHandler(nil, nil, nil)
			if tt.archive != nil {
				h = NewPollHandler(nil, nil, tt.archive)
			}
			r := mux.NewRouter()
			r.HandleFunc("/v1/polls/archive/{pollId}", h.ArchivedPoll)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/polls/archive/"+tt.pollID, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}

			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.wantStatus == http.StatusOK {
				if body["id"] != "p1" {
					t.Errorf("body = %v", body)
				}
				return
			}
			if tt.wantReason != "" && body["reason"] != tt.wantReason {
				t.Errorf("reason = %v, want %s", body["reason"], tt.wantReason)
			}
		})
	}
}
