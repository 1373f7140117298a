package service

import (
	"livepoll/internal/model"
	"math"
	"sync"
)

// Tally records the answers to one poll. Each participant is counted at
// most once no matter how many times Record is called for them.
type Tally struct {
	mu          sync.Mutex
	options     map[int]struct{}
	counts      map[int]int
	respondents map[string]struct{}
	order       []string
}

// NewTally creates an empty tally accepting the given options
func NewTally(options []model.Option) *Tally {
	t := &Tally{
		options:     make(map[int]struct{}, len(options)),
		counts:      make(map[int]int, len(options)),
		respondents: make(map[string]struct{}),
	}
	for _, o := range options {
		t.options[o.ID] = struct{}{}
	}
	return t
}

// Record counts one vote for optionID by participantID. Duplicates are
// rejected before the option is checked.
func (t *Tally) Record(participantID string, optionID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.respondents[participantID]; ok {
		return ErrDuplicateAnswer
	}
	if _, ok := t.options[optionID]; !ok {
		return ErrInvalidOption
	}

	t.counts[optionID]++
	t.respondents[participantID] = struct{}{}
	t.order = append(t.order, participantID)
	return nil
}

// HasAll reports whether every id in ids already answered. An empty list
// never counts as everyone having answered.
func (t *Tally) HasAll(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if _, ok := t.respondents[id]; !ok {
			return false
		}
	}
	return true
}

// Len returns the number of distinct respondents
func (t *Tally) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Counts returns a copy of optionID -> votes. Options without votes are absent.
func (t *Tally) Counts() map[int]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Respondents returns respondent ids in answer order
func (t *Tally) Respondents() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Percentage returns round(100*votes/total), or 0 when there are no votes
func Percentage(votes, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(votes) / float64(total)))
}

// ComputeStats derives per-option votes and percentages from a poll snapshot
func ComputeStats(p *model.Poll) *model.PollStats {
	total := 0
	for _, v := range p.Tally {
		total += v
	}

	stats := &model.PollStats{
		PollID:            p.ID,
		TotalVotes:        total,
		TotalParticipants: len(p.RespondedBy),
		Options:           make([]model.OptionStats, 0, len(p.Options)),
	}
	for _, o := range p.Options {
		votes := p.Tally[o.ID]
		stats.Options = append(stats.Options, model.OptionStats{
			ID:         o.ID,
			Text:       o.Text,
			IsCorrect:  o.IsCorrect,
			Votes:      votes,
			Percentage: Percentage(votes, total),
		})
	}
	return stats
}
