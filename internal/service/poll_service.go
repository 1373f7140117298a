package service

import (
	"context"
	"livepoll/internal/model"
	"livepoll/internal/repository"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Poll duration bounds in seconds
const (
	MinPollDuration     = 30
	MaxPollDuration     = 300
	DefaultPollDuration = 60
	MinPollOptions      = 2
)

// Timer is a cancellable scheduled callback
type Timer interface {
	Stop() bool
}

// Scheduler arms countdown timers. The default uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Directory lists the participant ids currently bound under a role
type Directory interface {
	ParticipantIDs(role model.Role) []string
}

// Archiver receives every closed poll after it leaves the active slot
type Archiver interface {
	Archive(ctx context.Context, poll *model.Poll) error
}

// PollService owns the single active poll, its countdown and the history.
// Every mutation runs under one mutex so create/submit/end/expire never
// interleave.
type PollService struct {
	mu      sync.Mutex
	active  *activePoll
	history repository.HistoryRepo

	broadcaster     Broadcaster
	directory       Directory
	scheduler       Scheduler
	archiver        Archiver
	now             func() time.Time
	defaultDuration int
}

type activePoll struct {
	poll  model.Poll
	tally *Tally
	timer Timer
}

// PollServiceOption configures a PollService
type PollServiceOption func(*PollService)

// WithScheduler replaces the countdown scheduler
func WithScheduler(s Scheduler) PollServiceOption {
	return func(ps *PollService) { ps.scheduler = s }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) PollServiceOption {
	return func(ps *PollService) { ps.now = now }
}

// WithDirectory sets the roster consulted for the all-answered check when a
// create request carries no respondent snapshot
func WithDirectory(d Directory) PollServiceOption {
	return func(ps *PollService) { ps.directory = d }
}

// WithDefaultDuration sets the duration used when a request omits one
func WithDefaultDuration(seconds int) PollServiceOption {
	return func(ps *PollService) { ps.defaultDuration = seconds }
}

// NewPollService creates a poll service in the no-active-poll state
func NewPollService(history repository.HistoryRepo, broadcaster Broadcaster, opts ...PollServiceOption) *PollService {
	s := &PollService{
		history:         history,
		broadcaster:     broadcaster,
		scheduler:       realScheduler{},
		now:             time.Now,
		defaultDuration: DefaultPollDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetArchiver sets the sink for closed polls
func (s *PollService) SetArchiver(a Archiver) {
	s.archiver = a
}

type pollDraft struct {
	question string
	options  []model.Option
	duration int
}

func (s *PollService) validate(req *model.CreatePollRequest) (*pollDraft, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, invalid("question", "question is required")
	}
	if len(req.Options) < MinPollOptions {
		return nil, invalid("options", "at least %d options are required", MinPollOptions)
	}

	options := make([]model.Option, 0, len(req.Options))
	for i, in := range req.Options {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, invalid("options", "option %d has no text", i+1)
		}
		options = append(options, model.Option{ID: i + 1, Text: text, IsCorrect: in.IsCorrect})
	}

	duration := req.DurationSeconds
	if duration == 0 {
		duration = s.defaultDuration
	}
	if duration < MinPollDuration || duration > MaxPollDuration {
		return nil, invalid("durationSeconds", "time limit must be between %d and %d seconds", MinPollDuration, MaxPollDuration)
	}

	return &pollDraft{question: question, options: options, duration: duration}, nil
}

// CreatePoll opens a new poll and arms its countdown. A poll that is still
// active blocks creation unless every current respondent has answered it,
// in which case it is closed first.
func (s *PollService) CreatePoll(req *model.CreatePollRequest) (*model.Poll, error) {
	draft, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()

	var superseded *model.Poll
	if s.active != nil {
		respondents := req.Respondents
		if respondents == nil && s.directory != nil {
			respondents = s.directory.ParticipantIDs(model.RoleRespondent)
		}
		if !s.active.tally.HasAll(respondents) {
			s.mu.Unlock()
			slog.Debug("poll: create rejected, poll still active", "active", s.active.poll.ID)
			return nil, ErrPollAlreadyActive
		}
		superseded = s.closeLocked(model.ClosedModeratorEnded, req.CreatedBy)
	}

	now := s.now()
	ap := &activePoll{
		poll: model.Poll{
			ID:              uuid.New().String(),
			Question:        draft.question,
			Options:         draft.options,
			DurationSeconds: draft.duration,
			CreatedBy:       req.CreatedBy,
			CreatedAt:       now,
			EndsAt:          now.Add(time.Duration(draft.duration) * time.Second),
			State:           model.PollActive,
		},
		tally: NewTally(draft.options),
	}
	pollID := ap.poll.ID
	ap.timer = s.scheduler.AfterFunc(time.Duration(draft.duration)*time.Second, func() {
		s.expire(pollID)
	})
	s.active = ap

	snap := s.snapshotLocked(ap)
	s.broadcast(model.EventPollCreated, snap)
	s.mu.Unlock()

	slog.Info("poll: created", "poll", pollID, "question", draft.question, "duration", draft.duration, "by", req.CreatedBy)
	s.archive(superseded)
	return snap, nil
}

// SubmitAnswer records one answer against the active poll
func (s *PollService) SubmitAnswer(pollID string, optionID int, participantID string) (*model.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || s.active.poll.ID != pollID {
		return nil, ErrNoActivePoll
	}
	if !s.active.poll.IsActive() {
		return nil, ErrPollClosed
	}
	if err := s.active.tally.Record(participantID, optionID); err != nil {
		slog.Debug("poll: answer rejected", "poll", pollID, "participant", participantID, "option", optionID, "err", err)
		return nil, err
	}

	tally := s.active.tally.Counts()
	respondents := s.active.tally.Respondents()
	s.broadcast(model.EventPollResultsUpdated, &model.PollResultsUpdate{
		PollID:      pollID,
		Tally:       tally,
		RespondedBy: respondents,
	})

	slog.Info("poll: answer recorded", "poll", pollID, "participant", participantID, "option", optionID)
	return &model.AnswerResult{
		PollID:          pollID,
		OptionID:        optionID,
		ParticipantID:   participantID,
		Tally:           tally,
		RespondedBy:     respondents,
		RespondentCount: len(respondents),
	}, nil
}

// EndPoll closes the active poll on behalf of a moderator
func (s *PollService) EndPoll(pollID, endedBy string) (*model.Poll, error) {
	s.mu.Lock()
	if s.active == nil || s.active.poll.ID != pollID {
		s.mu.Unlock()
		return nil, ErrNoActivePoll
	}
	closed := s.closeLocked(model.ClosedModeratorEnded, endedBy)
	s.mu.Unlock()

	slog.Info("poll: ended", "poll", pollID, "by", endedBy)
	s.archive(closed)
	return closed, nil
}

// expire runs on the countdown goroutine. It is a no-op unless pollID is
// still the active poll.
func (s *PollService) expire(pollID string) {
	s.mu.Lock()
	if s.active == nil || s.active.poll.ID != pollID {
		s.mu.Unlock()
		slog.Debug("poll: stale timer ignored", "poll", pollID)
		return
	}
	closed := s.closeLocked(model.ClosedTimedOut, model.SystemActor)
	s.mu.Unlock()

	slog.Info("poll: timed out", "poll", pollID)
	s.archive(closed)
}

// closeLocked disarms the timer, then closes the active poll, appends it to
// history and clears the slot. Caller holds s.mu.
func (s *PollService) closeLocked(reason model.ClosedReason, endedBy string) *model.Poll {
	ap := s.active
	if ap.timer != nil {
		ap.timer.Stop()
		ap.timer = nil
	}

	now := s.now()
	ap.poll.State = model.PollClosed
	ap.poll.ClosedAt = &now
	ap.poll.ClosedReason = reason
	ap.poll.EndedBy = endedBy

	snap := s.snapshotLocked(ap)
	s.history.Append(snap)
	s.active = nil

	s.broadcast(model.EventPollEnded, snap)
	return s.copyPoll(snap)
}

// ActivePoll returns a snapshot of the active poll, or nil
func (s *PollService) ActivePoll() *model.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	return s.snapshotLocked(s.active)
}

// History returns ended polls, most recently closed first
func (s *PollService) History() []*model.Poll {
	polls := s.history.List()
	out := make([]*model.Poll, len(polls))
	for i, p := range polls {
		out[i] = s.copyPoll(p)
	}
	return out
}

// PollResults returns the active poll or a historical one by id
func (s *PollService) PollResults(pollID string) (*model.Poll, error) {
	if p := s.ActivePoll(); p != nil && p.ID == pollID {
		return p, nil
	}
	if p, ok := s.history.Get(pollID); ok {
		return s.copyPoll(p), nil
	}
	return nil, ErrPollNotFound
}

// PollStats returns vote counts and percentages for a poll
func (s *PollService) PollStats(pollID string) (*model.PollStats, error) {
	p, err := s.PollResults(pollID)
	if err != nil {
		return nil, err
	}
	return ComputeStats(p), nil
}

// Reset disarms any countdown and clears the active poll and history
func (s *PollService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.timer != nil {
		s.active.timer.Stop()
	}
	s.active = nil
	s.history.Clear()
	slog.Info("poll: all poll data cleared")
}

func (s *PollService) snapshotLocked(ap *activePoll) *model.Poll {
	p := ap.poll
	p.Options = append([]model.Option(nil), ap.poll.Options...)
	p.Tally = ap.tally.Counts()
	p.RespondedBy = ap.tally.Respondents()
	if p.IsActive() {
		remaining := p.EndsAt.Sub(s.now()).Seconds()
		p.TimeRemainingSeconds = int(math.Max(0, math.Ceil(remaining)))
	}
	return &p
}

func (s *PollService) copyPoll(src *model.Poll) *model.Poll {
	p := *src
	p.Options = append([]model.Option(nil), src.Options...)
	p.RespondedBy = append([]string(nil), src.RespondedBy...)
	p.Tally = make(map[int]int, len(src.Tally))
	for k, v := range src.Tally {
		p.Tally[k] = v
	}
	if src.ClosedAt != nil {
		t := *src.ClosedAt
		p.ClosedAt = &t
	}
	return &p
}

func (s *PollService) broadcast(typ model.EventType, payload any) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(Everyone(), typ, payload)
	}
}

func (s *PollService) archive(p *model.Poll) {
	if p == nil || s.archiver == nil {
		return
	}
	archiver := s.archiver
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("poll: archive panic", "poll", p.ID, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := archiver.Archive(ctx, p); err != nil {
			slog.Error("poll: archive failed", "poll", p.ID, "err", err)
		}
	}()
}
