package service

import (
	"livepoll/internal/model"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// SessionRegistry owns live connection bindings and the participant records
// they point at. Participants are never deleted; kicked ones stay inert so
// history attribution keeps working.
type SessionRegistry struct {
	mu            sync.RWMutex
	participants  map[string]*model.Participant
	sessions      map[string]*model.Session      // handle -> session
	byParticipant map[string]map[string]struct{} // participantID -> handles
	now           func() time.Time
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		participants:  make(map[string]*model.Participant),
		sessions:      make(map[string]*model.Session),
		byParticipant: make(map[string]map[string]struct{}),
		now:           time.Now,
	}
}

// Register adds an offline participant record. Display names are unique
// (case-insensitive) among participants that have not been kicked.
func (r *SessionRegistry) Register(p *model.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nameTakenLocked(p.DisplayName, "") {
		return ErrNameTaken
	}
	now := r.now()
	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.LastSeenAt = now
	r.participants[cp.ID] = &cp
	slog.Info("registry: participant registered", "participant", cp.ID, "name", cp.DisplayName, "role", cp.Role)
	return nil
}

// Bind attaches a connection to a participant, creating the participant on
// first sight. A known participant keeps its stored role. online reports
// whether this bind took the participant from offline to online.
func (r *SessionRegistry) Bind(handle, participantID string, role model.Role, displayName string) (sess *model.Session, online bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[handle]; ok {
		return nil, false, ErrAlreadyBound
	}

	now := r.now()
	p, ok := r.participants[participantID]
	if ok && p.Kicked {
		return nil, false, ErrParticipantKicked
	}
	if !ok {
		p = &model.Participant{
			ID:        participantID,
			Role:      role,
			CreatedAt: now,
		}
		r.participants[participantID] = p
	} else if p.Role != role {
		slog.Warn("registry: bind role ignored for known participant", "participant", participantID, "claimed", role, "role", p.Role)
	}
	if displayName != "" {
		p.DisplayName = displayName
	}
	p.LastSeenAt = now

	handles := r.byParticipant[participantID]
	if handles == nil {
		handles = make(map[string]struct{})
		r.byParticipant[participantID] = handles
	}
	online = len(handles) == 0
	handles[handle] = struct{}{}
	p.Connected = true

	s := &model.Session{
		Handle:        handle,
		ParticipantID: participantID,
		DisplayName:   p.DisplayName,
		Role:          p.Role,
		BoundAt:       now,
	}
	r.sessions[handle] = s

	slog.Info("registry: session bound", "handle", handle, "participant", participantID, "role", p.Role)
	cp := *s
	return &cp, online, nil
}

// Unbind removes a connection binding. offline reports whether that was the
// participant's last live session.
func (r *SessionRegistry) Unbind(handle string) (participantID string, offline bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[handle]
	if !ok {
		return "", false, false
	}
	delete(r.sessions, handle)

	handles := r.byParticipant[s.ParticipantID]
	delete(handles, handle)
	if len(handles) == 0 {
		delete(r.byParticipant, s.ParticipantID)
		offline = true
	}
	if p, exists := r.participants[s.ParticipantID]; exists {
		p.LastSeenAt = r.now()
		if offline {
			p.Connected = false
		}
	}

	slog.Info("registry: session unbound", "handle", handle, "participant", s.ParticipantID, "offline", offline)
	return s.ParticipantID, offline, true
}

// Kick marks a participant inert and drops all of its bindings. The removed
// handles are returned so the transport can close them.
func (r *SessionRegistry) Kick(participantID string) ([]string, *model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok || p.Kicked {
		return nil, nil, ErrParticipantNotFound
	}
	p.Kicked = true
	p.Connected = false
	p.LastSeenAt = r.now()

	handles := make([]string, 0, len(r.byParticipant[participantID]))
	for h := range r.byParticipant[participantID] {
		delete(r.sessions, h)
		handles = append(handles, h)
	}
	delete(r.byParticipant, participantID)
	sort.Strings(handles)

	slog.Info("registry: participant kicked", "participant", participantID, "sessions", len(handles))
	cp := *p
	return handles, &cp, nil
}

// Lookup returns the binding for a connection
func (r *SessionRegistry) Lookup(handle string) (*model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[handle]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// Touch refreshes lastSeenAt for the participant behind handle
func (r *SessionRegistry) Touch(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[handle]; ok {
		if p, ok := r.participants[s.ParticipantID]; ok {
			p.LastSeenAt = r.now()
		}
	}
}

// Get returns a participant record by id
func (r *SessionRegistry) Get(participantID string) (*model.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[participantID]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

// Rename changes a participant's display name, here and in its live sessions
func (r *SessionRegistry) Rename(participantID, name string) (oldName string, p *model.Participant, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.participants[participantID]
	if !ok || cur.Kicked {
		return "", nil, ErrParticipantNotFound
	}
	if r.nameTakenLocked(name, participantID) {
		return "", nil, ErrNameTaken
	}
	oldName = cur.DisplayName
	cur.DisplayName = name
	cur.LastSeenAt = r.now()
	for h := range r.byParticipant[participantID] {
		r.sessions[h].DisplayName = name
	}

	cp := *cur
	return oldName, &cp, nil
}

// ListOnline returns connected participants, most recently seen first. An
// empty role returns every role.
func (r *SessionRegistry) ListOnline(role model.Role) []model.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Participant, 0, len(r.byParticipant))
	for id := range r.byParticipant {
		p := r.participants[id]
		if p == nil || p.Kicked {
			continue
		}
		if role != "" && p.Role != role {
			continue
		}
		out = append(out, *p)
	}
	sortParticipants(out)
	return out
}

// ParticipantIDs lists the bound participants of a role
func (r *SessionRegistry) ParticipantIDs(role model.Role) []string {
	online := r.ListOnline(role)
	ids := make([]string, len(online))
	for i, p := range online {
		ids[i] = p.ID
	}
	return ids
}

// All returns every participant that has not been kicked
func (r *SessionRegistry) All() []model.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if !p.Kicked {
			out = append(out, *p)
		}
	}
	sortParticipants(out)
	return out
}

// Search matches display names containing query, case-insensitive
func (r *SessionRegistry) Search(query string, limit int) []model.Participant {
	term := strings.ToLower(strings.TrimSpace(query))
	var out []model.Participant
	for _, p := range r.All() {
		if strings.Contains(strings.ToLower(p.DisplayName), term) {
			out = append(out, p)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Stats summarizes the participant directory
func (r *SessionRegistry) Stats() *model.ParticipantStats {
	all := r.All()
	stats := &model.ParticipantStats{TotalUsers: len(all)}
	for _, p := range all {
		if p.Connected {
			stats.ActiveUsers++
		}
		switch p.Role {
		case model.RoleModerator:
			stats.Moderators++
		case model.RoleRespondent:
			stats.Respondents++
		}
	}
	stats.OfflineUsers = stats.TotalUsers - stats.ActiveUsers
	return stats
}

// Handles resolves an audience to connection handles, sorted
func (r *SessionRegistry) Handles(aud Audience) []string {
	if aud.Kind == AudienceSession {
		if aud.Handle == "" {
			return nil
		}
		return []string{aud.Handle}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	switch aud.Kind {
	case AudienceParticipant:
		for h := range r.byParticipant[aud.ParticipantID] {
			out = append(out, h)
		}
	default:
		for h, s := range r.sessions {
			switch aud.Kind {
			case AudienceRole:
				if s.Role != aud.Role {
					continue
				}
			case AudienceEveryoneExcept:
				if s.ParticipantID == aud.ParticipantID {
					continue
				}
			}
			out = append(out, h)
		}
	}
	sort.Strings(out)
	return out
}

func (r *SessionRegistry) nameTakenLocked(name, exceptID string) bool {
	for id, p := range r.participants {
		if id == exceptID || p.Kicked {
			continue
		}
		if strings.EqualFold(p.DisplayName, name) {
			return true
		}
	}
	return false
}

func sortParticipants(ps []model.Participant) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].LastSeenAt.Equal(ps[j].LastSeenAt) {
			return ps[i].LastSeenAt.After(ps[j].LastSeenAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
