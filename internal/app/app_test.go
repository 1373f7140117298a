package app

import (
	"bytes"
	"context"
	"encoding/json"
	"livepoll/internal/config"
	"livepoll/internal/model"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.JWTSecret = "app-test-secret"
	if mutate != nil {
		mutate(cfg)
	}
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		a.Close()
		srv.Close()
	})
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectFrame(t *testing.T, conn *websocket.Conn, want model.EventType) model.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env model.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("waiting for %s: %v", want, err)
	}
	if env.Type != want {
		t.Fatalf("frame = %s (%s), want %s", env.Type, env.Payload, want)
	}
	return env
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func TestApp_PollRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)

	var login model.LoginResponse
	if code := doJSON(t, srv, "POST", "/v1/auth/login", "", &model.LoginRequest{Username: "admin", Password: "password123"}, &login); code != http.StatusOK {
		t.Fatalf("login status = %d", code)
	}
	modToken := login.Token

	var joined model.ParticipantJoinResponse
	if code := doJSON(t, srv, "POST", "/v1/participants", "", &model.CreateParticipantRequest{Name: "Alice"}, &joined); code != http.StatusCreated {
		t.Fatalf("join status = %d", code)
	}
	aliceID := joined.Participant.ID

	conn := dialWS(t, srv, joined.Token)
	auth := expectFrame(t, conn, model.EventAuthenticated)
	var authed model.AuthenticatedPayload
	json.Unmarshal(auth.Payload, &authed)
	if authed.ParticipantID != aliceID || authed.Role != model.RoleRespondent {
		t.Errorf("authenticated = %+v", authed)
	}
	expectFrame(t, conn, model.EventParticipantsUpdate)

	var poll model.Poll
	create := &model.CreatePollRequest{
		Question:        "Capital of France?",
		Options:         []model.OptionInput{{Text: "London"}, {Text: "Paris", IsCorrect: true}},
		DurationSeconds: 30,
	}
	if code := doJSON(t, srv, "POST", "/v1/polls", modToken, create, &poll); code != http.StatusCreated {
		t.Fatalf("create poll status = %d", code)
	}
	expectFrame(t, conn, model.EventPollCreated)

	var eb errorBody
	if code := doJSON(t, srv, "POST", "/v1/polls", joined.Token, create, &eb); code != http.StatusForbidden {
		t.Errorf("respondent create status = %d", code)
	}
	if code := doJSON(t, srv, "POST", "/v1/polls", modToken, create, &eb); code != http.StatusConflict || eb.Reason != "poll_already_active" {
		t.Errorf("second create = %d %+v", code, eb)
	}

	var res model.AnswerResult
	if code := doJSON(t, srv, "POST", "/v1/polls/"+poll.ID+"/answers", joined.Token, map[string]int{"optionId": 2}, &res); code != http.StatusOK {
		t.Fatalf("answer status = %d", code)
	}
	if res.Tally[2] != 1 || res.RespondentCount != 1 {
		t.Errorf("answer result = %+v", res)
	}
	expectFrame(t, conn, model.EventPollResultsUpdated)

	if code := doJSON(t, srv, "POST", "/v1/polls/"+poll.ID+"/answers", joined.Token, map[string]int{"optionId": 1}, &eb); code != http.StatusConflict || eb.Reason != "duplicate_answer" {
		t.Errorf("duplicate answer = %d %+v", code, eb)
	}

	var stats model.PollStats
	if code := doJSON(t, srv, "GET", "/v1/polls/"+poll.ID+"/stats", joined.Token, nil, &stats); code != http.StatusOK || stats.TotalVotes != 1 || stats.Options[1].Percentage != 100 {
		t.Errorf("stats = %d %+v", code, stats)
	}

	var ended model.Poll
	if code := doJSON(t, srv, "PUT", "/v1/polls/"+poll.ID+"/end", modToken, nil, &ended); code != http.StatusOK || ended.ClosedReason != model.ClosedModeratorEnded {
		t.Fatalf("end = %d %+v", code, ended)
	}
	expectFrame(t, conn, model.EventPollEnded)

	var history []model.Poll
	if code := doJSON(t, srv, "GET", "/v1/polls/history", modToken, nil, &history); code != http.StatusOK || len(history) != 1 {
		t.Errorf("history = %d %+v", code, history)
	}
	if code := doJSON(t, srv, "GET", "/v1/polls/active", joined.Token, nil, &eb); code != http.StatusConflict {
		t.Errorf("active after end = %d", code)
	}

	var kicked model.Participant
	if code := doJSON(t, srv, "DELETE", "/v1/participants/"+aliceID, modToken, nil, &kicked); code != http.StatusOK || !kicked.Kicked {
		t.Fatalf("kick = %d %+v", code, kicked)
	}
	expectFrame(t, conn, model.EventParticipantKicked)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("after kick read err = %v, want normal close", err)
	}

	// the kicked participant's token still validates but the record is inert
	var next model.Poll
	create.Question = "Capital of Spain?"
	if code := doJSON(t, srv, "POST", "/v1/polls", modToken, create, &next); code != http.StatusCreated {
		t.Fatalf("second poll status = %d", code)
	}
	if code := doJSON(t, srv, "POST", "/v1/polls/"+next.ID+"/answers", joined.Token, map[string]int{"optionId": 2}, &eb); code != http.StatusConflict || eb.Reason != "participant_kicked" {
		t.Errorf("kicked answer = %d %+v", code, eb)
	}
	if code := doJSON(t, srv, "POST", "/v1/chat/messages", joined.Token, &model.SendMessageRequest{Text: "still here"}, &eb); code != http.StatusConflict || eb.Reason != "participant_kicked" {
		t.Errorf("kicked chat = %d %+v", code, eb)
	}
	var results model.Poll
	if code := doJSON(t, srv, "GET", "/v1/polls/"+next.ID+"/results", modToken, nil, &results); code != http.StatusOK || len(results.RespondedBy) != 0 {
		t.Errorf("results after kicked answer = %d %+v", code, results)
	}
}

func TestApp_RESTErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"bad login", "POST", "/v1/auth/login", "", &model.LoginRequest{Username: "admin", Password: "x"}, http.StatusUnauthorized},
		{"no token", "GET", "/v1/polls/active", "", nil, http.StatusUnauthorized},
		{"garbage token", "GET", "/v1/polls/active", "nope", nil, http.StatusUnauthorized},
		{"join as moderator", "POST", "/v1/participants", "", &model.CreateParticipantRequest{Name: "Boss", Role: "teacher"}, http.StatusForbidden},
		{"join short name", "POST", "/v1/participants", "", &model.CreateParticipantRequest{Name: "B"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := doJSON(t, srv, tt.method, tt.path, tt.token, tt.body, nil); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}

	var login model.LoginResponse
	doJSON(t, srv, "POST", "/v1/auth/login", "", &model.LoginRequest{Username: "admin", Password: "password123"}, &login)
	if code := doJSON(t, srv, "GET", "/v1/polls/missing/results", login.Token, nil, nil); code != http.StatusNotFound {
		t.Errorf("missing poll status = %d", code)
	}
	if code := doJSON(t, srv, "GET", "/v1/polls/archive", login.Token, nil, nil); code != http.StatusNotFound {
		t.Errorf("archive without redis = %d", code)
	}
	if code := doJSON(t, srv, "GET", "/v1/polls/archive/p1", login.Token, nil, nil); code != http.StatusNotFound {
		t.Errorf("archived poll without redis = %d", code)
	}
	if code := doJSON(t, srv, "POST", "/v1/polls", login.Token, &model.CreatePollRequest{Question: "q", Options: []model.OptionInput{{Text: "a"}, {Text: "b"}}, DurationSeconds: 5}, nil); code != http.StatusBadRequest {
		t.Errorf("short duration status = %d", code)
	}

	resp, err := http.Get(srv.URL + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %v %v", resp, err)
	}
	resp.Body.Close()
}

func TestApp_WebSocketHandshakeWithoutToken(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) { c.RequireToken = false })
	conn := dialWS(t, srv, "")

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	env := expectFrame(t, conn, model.EventPollError)
	var p model.ErrorPayload
	json.Unmarshal(env.Payload, &p)
	if p.Reason != "invalid_input" {
		t.Errorf("malformed frame reason = %q", p.Reason)
	}

	conn.WriteJSON(map[string]any{"type": "submit_answer", "payload": map[string]any{"pollId": "x", "optionId": 1}})
	env = expectFrame(t, conn, model.EventAnswerError)
	json.Unmarshal(env.Payload, &p)
	if p.Reason != "not_authenticated" {
		t.Errorf("unauthenticated reason = %q", p.Reason)
	}

	conn.WriteJSON(map[string]any{"type": "authenticate", "payload": map[string]any{"role": "student", "name": "Walk-in"}})
	expectFrame(t, conn, model.EventAuthenticated)
	expectFrame(t, conn, model.EventParticipantsUpdate)

	conn.WriteJSON(map[string]any{"type": "send_message", "payload": map[string]any{"text": "hello"}})
	sent := expectFrame(t, conn, model.EventMessageSent)
	var msg model.ChatMessage
	json.Unmarshal(sent.Payload, &msg)
	if msg.Text != "hello" || msg.SenderName != "Walk-in" {
		t.Errorf("message = %+v", msg)
	}
}
