package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfAndReason(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		reason string
	}{
		{"conflict", ErrPollAlreadyActive, KindConflict, "poll_already_active"},
		{"wrapped conflict", fmt.Errorf("create: %w", ErrDuplicateAnswer), KindConflict, "duplicate_answer"},
		{"authorization", ErrNotModerator, KindAuthorization, "not_moderator"},
		{"not found", ErrPollNotFound, KindNotFound, "poll_not_found"},
		{"validation", invalid("question", "question is required"), KindValidation, "invalid_input"},
		{"unknown", errors.New("disk on fire"), KindInternal, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
			if got := Reason(tt.err); got != tt.reason {
				t.Errorf("Reason = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(errors.New("db password leaked in here"), "internal server error"); got != "internal server error" {
		t.Errorf("internal fault exposed: %q", got)
	}
	if got := PublicMessage(ErrNoActivePoll, "x"); got != ErrNoActivePoll.Error() {
		t.Errorf("got %q", got)
	}
	if got := invalid("durationSeconds", "must be between %d and %d", 30, 300).Error(); got != "durationSeconds: must be between 30 and 300" {
		t.Errorf("validation message = %q", got)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"  Alice ", "Alice", false},
		{"Al", "Al", false},
		{"A", "", true},
		{"   ", "", true},
		{"Zoë", "Zoë", false},
	}
	for _, tt := range tests {
		got, err := NormalizeName(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, %v", tt.in, got, err)
		}
	}
}
