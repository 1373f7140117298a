package service

import (
	"errors"
	"livepoll/internal/model"
	"testing"
)

func TestUserService_Create(t *testing.T) {
	reg := newTestRegistry()
	auth := newTestAuth(0)
	users := NewUserService(reg, auth)

	resp, err := users.Create(&model.CreateParticipantRequest{Name: " Alice "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.Participant.DisplayName != "Alice" || resp.Participant.Role != model.RoleRespondent || resp.Participant.Connected {
		t.Errorf("participant = %+v", resp.Participant)
	}
	claims, err := auth.ValidateToken(resp.Token)
	if err != nil || claims.ParticipantID != resp.Participant.ID {
		t.Fatalf("token claims = %+v, %v", claims, err)
	}

	tests := []struct {
		name string
		req  model.CreateParticipantRequest
		want error
		kind Kind
	}{
		{"duplicate name", model.CreateParticipantRequest{Name: "alice"}, ErrNameTaken, KindConflict},
		{"moderator role", model.CreateParticipantRequest{Name: "Boss", Role: "teacher"}, ErrNotModerator, KindAuthorization},
		{"unknown role", model.CreateParticipantRequest{Name: "Bob", Role: "janitor"}, nil, KindValidation},
		{"short name", model.CreateParticipantRequest{Name: "B"}, nil, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Create(&tt.req)
			if KindOf(err) != tt.kind {
				t.Errorf("kind = %v (%v), want %v", KindOf(err), err, tt.kind)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := users.Create(&model.CreateParticipantRequest{Name: "Bob", Role: "student"}); err != nil {
		t.Fatalf("Create student alias: %v", err)
	}
	if got := users.Search("o", 0); len(got) != 1 || got[0].DisplayName != "Bob" {
		t.Errorf("Search = %+v", got)
	}
	if got := users.Search("", 0); got != nil {
		t.Errorf("blank search = %+v", got)
	}
	if got := users.Online(""); len(got) != 0 {
		t.Errorf("created participants should start offline: %+v", got)
	}
	if s := users.Stats(); s.TotalUsers != 2 || s.OfflineUsers != 2 {
		t.Errorf("stats = %+v", s)
	}
	if _, err := users.Get("ghost"); !errors.Is(err, ErrParticipantNotFound) {
		t.Errorf("Get unknown: %v", err)
	}
}
