package model

import "encoding/json"

// EventType names an inbound or outbound WebSocket event
type EventType string

// Outbound poll events
const (
	EventPollCreated        EventType = "poll_created"
	EventPollResultsUpdated EventType = "poll_results_updated"
	EventPollEnded          EventType = "poll_ended"
	EventPollActive         EventType = "poll_active"
	EventPollHistory        EventType = "poll_history"
)

// Outbound presence and session events
const (
	EventAuthenticated      EventType = "authenticated"
	EventParticipantJoined  EventType = "participant_joined"
	EventParticipantLeft    EventType = "participant_left"
	EventParticipantKicked  EventType = "participant_kicked"
	EventParticipantsUpdate EventType = "participants_update"
	EventUserNameUpdated    EventType = "user_name_updated"
	EventNewMessage         EventType = "new_message"
	EventPrivateMessage     EventType = "private_message"
	EventMessageSent        EventType = "message_sent"
	EventUserTyping         EventType = "user_typing"
	EventUserStoppedTyping  EventType = "user_stopped_typing"
	EventAnswerAccepted     EventType = "answer_accepted"
)

// Outbound error events, sent to the originating session only
const (
	EventAuthError       EventType = "auth_error"
	EventPollError       EventType = "poll_error"
	EventAnswerError     EventType = "answer_error"
	EventKickError       EventType = "kick_error"
	EventMessageError    EventType = "message_error"
	EventNameUpdateError EventType = "name_update_error"
)

// Inbound client events
const (
	EventAuthenticate   EventType = "authenticate"
	EventCreatePoll     EventType = "create_poll"
	EventSubmitAnswer   EventType = "submit_answer"
	EventEndPoll        EventType = "end_poll"
	EventKickUser       EventType = "kick_user"
	EventSendMessage    EventType = "send_message"
	EventTypingStart    EventType = "typing_start"
	EventTypingStop     EventType = "typing_stop"
	EventUpdateUserName EventType = "update_user_name"
	EventGetPollHistory EventType = "get_poll_history"
)

// Envelope is the wire format of every WebSocket frame
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is carried by the *_error events
type ErrorPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// PresencePayload is carried by join/leave/kick notices
type PresencePayload struct {
	ParticipantID string `json:"userId"`
	Name          string `json:"name"`
	Role          Role   `json:"role,omitempty"`
	By            string `json:"by,omitempty"`
	ByName        string `json:"byName,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// AuthenticatePayload is the inbound authenticate body. Token is required
// unless the server runs with token checks disabled.
type AuthenticatePayload struct {
	Token         string `json:"token,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	Role          string `json:"role,omitempty"`
	Name          string `json:"name,omitempty"`
}

// AuthenticatedPayload answers a successful authenticate
type AuthenticatedPayload struct {
	ParticipantID string `json:"userId"`
	Role          Role   `json:"role"`
	Name          string `json:"name"`
	Message       string `json:"message"`
}

// TypingPayload is the inbound typing_start/typing_stop body
type TypingPayload struct {
	RecipientID string `json:"recipientId,omitempty"`
}

// EndPollPayload is the inbound end_poll body
type EndPollPayload struct {
	PollID string `json:"pollId"`
}

// KickPayload is the inbound kick_user body
type KickPayload struct {
	ParticipantID string `json:"participantId"`
}

// NameUpdatedPayload is carried by user_name_updated
type NameUpdatedPayload struct {
	ParticipantID string `json:"userId"`
	OldName       string `json:"oldName"`
	NewName       string `json:"newName"`
}
