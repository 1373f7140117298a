package service

import "livepoll/internal/model"

// AudienceKind selects which live sessions receive an event
type AudienceKind int

const (
	AudienceEveryone AudienceKind = iota
	AudienceRole
	AudienceParticipant
	AudienceEveryoneExcept
	AudienceSession
)

// Audience is a logical recipient selector resolved against the session registry
type Audience struct {
	Kind          AudienceKind
	Role          model.Role
	ParticipantID string
	Handle        string
}

// Everyone selects every bound session
func Everyone() Audience { return Audience{Kind: AudienceEveryone} }

// ToRole selects the bound sessions of one role
func ToRole(r model.Role) Audience { return Audience{Kind: AudienceRole, Role: r} }

// ToParticipant selects all live sessions of one participant
func ToParticipant(id string) Audience {
	return Audience{Kind: AudienceParticipant, ParticipantID: id}
}

// EveryoneExcept selects every bound session not owned by participant id
func EveryoneExcept(id string) Audience {
	return Audience{Kind: AudienceEveryoneExcept, ParticipantID: id}
}

// ToSession selects one connection, bound or not
func ToSession(handle string) Audience {
	return Audience{Kind: AudienceSession, Handle: handle}
}

// Broadcaster delivers an event to an audience (avoids import cycle with transport)
type Broadcaster interface {
	Broadcast(aud Audience, typ model.EventType, payload any)
}

// Roster resolves an audience to connection handles
type Roster interface {
	Handles(aud Audience) []string
}

// Transport is the send primitive of the connection layer. Send must not
// block; a connection that cannot keep up drops the frame.
type Transport interface {
	Send(handle string, data []byte)
	Close(handle string)
}
