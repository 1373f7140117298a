package service

import (
	"errors"
	"fmt"
)

// Kind groups errors by how the boundary reports them
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthorization
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	}
	return "internal"
}

// Conflict errors: the request is well formed but the current state rejects it
var (
	ErrPollAlreadyActive = errors.New("cannot create new poll: previous poll is still active")
	ErrNoActivePoll      = errors.New("no active poll found")
	ErrPollClosed        = errors.New("poll is not active")
	ErrDuplicateAnswer   = errors.New("you have already answered this poll")
	ErrInvalidOption     = errors.New("invalid answer option")
	ErrAlreadyBound      = errors.New("connection is already authenticated")
	ErrNameTaken         = errors.New("user with this name already exists")
	ErrParticipantKicked = errors.New("participant was removed from the session")
)

// Authorization errors
var (
	ErrNotModerator     = errors.New("moderator access required")
	ErrNotAuthenticated = errors.New("authentication required")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrInvalidLogin     = errors.New("invalid username or password")
)

// Not found errors
var (
	ErrParticipantNotFound = errors.New("user not found")
	ErrPollNotFound        = errors.New("poll not found")
)

var reasons = map[error]string{
	ErrPollAlreadyActive:   "poll_already_active",
	ErrNoActivePoll:        "no_active_poll",
	ErrPollClosed:          "poll_closed",
	ErrDuplicateAnswer:     "duplicate_answer",
	ErrInvalidOption:       "invalid_option",
	ErrAlreadyBound:        "already_bound",
	ErrNameTaken:           "name_taken",
	ErrParticipantKicked:   "participant_kicked",
	ErrNotModerator:        "not_moderator",
	ErrNotAuthenticated:    "not_authenticated",
	ErrInvalidToken:        "invalid_token",
	ErrInvalidLogin:        "invalid_login",
	ErrParticipantNotFound: "participant_not_found",
	ErrPollNotFound:        "poll_not_found",
}

var kinds = map[error]Kind{
	ErrPollAlreadyActive:   KindConflict,
	ErrNoActivePoll:        KindConflict,
	ErrPollClosed:          KindConflict,
	ErrDuplicateAnswer:     KindConflict,
	ErrInvalidOption:       KindConflict,
	ErrAlreadyBound:        KindConflict,
	ErrNameTaken:           KindConflict,
	ErrParticipantKicked:   KindConflict,
	ErrNotModerator:        KindAuthorization,
	ErrNotAuthenticated:    KindAuthorization,
	ErrInvalidToken:        KindAuthorization,
	ErrInvalidLogin:        KindAuthorization,
	ErrParticipantNotFound: KindNotFound,
	ErrPollNotFound:        KindNotFound,
}

// ValidationError reports malformed input. It is returned before any state
// is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies err. Unknown errors are internal faults.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	for sentinel, k := range kinds {
		if errors.Is(err, sentinel) {
			return k
		}
	}
	return KindInternal
}

// Reason returns a stable machine-readable code for err
func Reason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "invalid_input"
	}
	for sentinel, r := range reasons {
		if errors.Is(err, sentinel) {
			return r
		}
	}
	return "internal_error"
}

// PublicMessage is the text safe to show a caller. Internal faults are
// reduced to a generic message.
func PublicMessage(err error, fallback string) string {
	if KindOf(err) == KindInternal {
		return fallback
	}
	return err.Error()
}
