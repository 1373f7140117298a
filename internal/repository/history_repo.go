package repository

import (
	"livepoll/internal/model"
	"sync"
)

// HistoryRepo is the append-only record of ended polls
type HistoryRepo interface {
	Append(poll *model.Poll)
	List() []*model.Poll
	Get(id string) (*model.Poll, bool)
	Len() int
	Clear()
}

type historyRepo struct {
	mu    sync.RWMutex
	polls []*model.Poll
	index map[string]int
}

// NewHistoryRepo creates an in-memory history store. Contents are lost on restart.
func NewHistoryRepo() HistoryRepo {
	return &historyRepo{
		index: make(map[string]int),
	}
}

func (r *historyRepo) Append(poll *model.Poll) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[poll.ID]; exists {
		return
	}
	r.index[poll.ID] = len(r.polls)
	r.polls = append(r.polls, poll)
}

// List returns ended polls, most recently closed first
func (r *historyRepo) List() []*model.Poll {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Poll, 0, len(r.polls))
	for i := len(r.polls) - 1; i >= 0; i-- {
		out = append(out, r.polls[i])
	}
	return out
}

func (r *historyRepo) Get(id string) (*model.Poll, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.polls[i], true
}

func (r *historyRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.polls)
}

func (r *historyRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = nil
	r.index = make(map[string]int)
}
