package model

import "time"

type PollState string

const (
	PollActive PollState = "active"
	PollClosed PollState = "closed"
)

type ClosedReason string

const (
	ClosedModeratorEnded ClosedReason = "moderator_ended"
	ClosedTimedOut       ClosedReason = "timed_out"
)

// SystemActor is recorded as endedBy when the countdown closes a poll
const SystemActor = "system"

// Option is one answer choice; IDs are 1..n in the order supplied
type Option struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect,omitempty"`
}

// Poll is a snapshot of a poll. The engine hands out copies only.
type Poll struct {
	ID              string       `json:"id"`
	Question        string       `json:"question"`
	Options         []Option     `json:"options"`
	DurationSeconds int          `json:"timeLimit"`
	CreatedBy       string       `json:"createdBy"`
	CreatedAt       time.Time    `json:"createdAt"`
	EndsAt          time.Time    `json:"endsAt"`
	State           PollState    `json:"state"`
	ClosedAt        *time.Time   `json:"endedAt,omitempty"`
	ClosedReason    ClosedReason `json:"closedReason,omitempty"`
	EndedBy         string       `json:"endedBy,omitempty"`
	Tally           map[int]int  `json:"results"`
	RespondedBy     []string     `json:"answeredBy"`

	// TimeRemainingSeconds is computed when the snapshot is taken
	TimeRemainingSeconds int `json:"timeRemaining"`
}

// IsActive reports whether the poll still accepts answers
func (p *Poll) IsActive() bool {
	return p.State == PollActive
}

// OptionStats is the per-option view of a tally
type OptionStats struct {
	ID         int    `json:"id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect,omitempty"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

// PollStats is the computed result view of a poll
type PollStats struct {
	PollID            string        `json:"pollId"`
	TotalVotes        int           `json:"totalVotes"`
	TotalParticipants int           `json:"totalParticipants"`
	Options           []OptionStats `json:"options"`
}

// OptionInput is one option as supplied by the moderator
type OptionInput struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect,omitempty"`
}

// CreatePollRequest is the request body for creating a poll
type CreatePollRequest struct {
	Question        string        `json:"question"`
	Options         []OptionInput `json:"options"`
	DurationSeconds int           `json:"durationSeconds"`
	CreatedBy       string        `json:"-"`

	// Respondents, when non-nil, is the caller's snapshot of current
	// respondent ids used for the skip-ahead check.
	Respondents []string `json:"-"`
}

// PollResultsUpdate is the payload of poll_results_updated
type PollResultsUpdate struct {
	PollID      string      `json:"pollId"`
	Tally       map[int]int `json:"results"`
	RespondedBy []string    `json:"answeredBy"`
}
