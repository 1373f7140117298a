package service

import (
	"encoding/json"
	"fmt"
	"livepoll/internal/model"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// firstAnswerNotices is how many answers per poll get a chat notice
const firstAnswerNotices = 3

// Dispatcher is the outbound side the classroom drives
type Dispatcher interface {
	Broadcaster
	Disconnect(handles []string)
}

// ClassroomService turns inbound classroom events into registry, engine and
// chat operations and emits the resulting outbound events. REST handlers and
// the WebSocket read pump both go through it.
type ClassroomService struct {
	registry     *SessionRegistry
	polls        *PollService
	chat         *ChatService
	auth         *AuthService
	out          Dispatcher
	requireToken bool
}

// NewClassroomService creates the inbound event dispatcher
func NewClassroomService(registry *SessionRegistry, polls *PollService, chat *ChatService, auth *AuthService, out Dispatcher, requireToken bool) *ClassroomService {
	return &ClassroomService{
		registry:     registry,
		polls:        polls,
		chat:         chat,
		auth:         auth,
		out:          out,
		requireToken: requireToken,
	}
}

// ActorFromClaims builds a connectionless actor for REST callers
func ActorFromClaims(c *model.ParticipantClaims) *model.Session {
	return &model.Session{
		ParticipantID: c.ParticipantID,
		DisplayName:   c.Name,
		Role:          c.Role,
	}
}

// checkActive rejects actors whose participant record was kicked. REST
// actors come from token claims alone, so the registry has the last word.
// Ids the registry never saw pass.
func (s *ClassroomService) checkActive(actor *model.Session) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if p, err := s.registry.Get(actor.ParticipantID); err == nil && p.Kicked {
		return ErrParticipantKicked
	}
	return nil
}

func (s *ClassroomService) requireModerator(actor *model.Session) error {
	if err := s.checkActive(actor); err != nil {
		return err
	}
	if actor.Role != model.RoleModerator {
		return ErrNotModerator
	}
	return nil
}

// Authenticate binds a connection. The session then receives authenticated,
// the active poll if one exists, and the online roster, in that order.
func (s *ClassroomService) Authenticate(handle string, req *model.AuthenticatePayload) (*model.Session, error) {
	id, role, name, err := s.identify(req)
	if err != nil {
		return nil, err
	}

	sess, online, err := s.registry.Bind(handle, id, role, name)
	if err != nil {
		return nil, err
	}

	self := ToSession(handle)
	s.out.Broadcast(self, model.EventAuthenticated, &model.AuthenticatedPayload{
		ParticipantID: sess.ParticipantID,
		Role:          sess.Role,
		Name:          sess.DisplayName,
		Message:       "Successfully authenticated",
	})
	if p := s.polls.ActivePoll(); p != nil {
		s.out.Broadcast(self, model.EventPollActive, p)
	}
	s.out.Broadcast(self, model.EventParticipantsUpdate, s.registry.ListOnline(""))

	if online {
		others := EveryoneExcept(sess.ParticipantID)
		s.out.Broadcast(others, model.EventParticipantJoined, s.presence(sess.ParticipantID, sess.DisplayName, sess.Role, nil))
		s.out.Broadcast(others, model.EventParticipantsUpdate, s.registry.ListOnline(""))
	}
	return sess, nil
}

func (s *ClassroomService) identify(req *model.AuthenticatePayload) (id string, role model.Role, name string, err error) {
	if req.Token != "" {
		claims, err := s.auth.ValidateToken(req.Token)
		if err != nil {
			return "", "", "", err
		}
		role, _ = model.ParseRole(string(claims.Role))
		return claims.ParticipantID, role, claims.Name, nil
	}
	if s.requireToken {
		return "", "", "", ErrNotAuthenticated
	}

	role, ok := model.ParseRole(req.Role)
	if !ok {
		return "", "", "", invalid("role", "unknown role %q", req.Role)
	}
	name, err = NormalizeName(req.Name)
	if err != nil {
		return "", "", "", err
	}
	id = strings.TrimSpace(req.ParticipantID)
	if id == "" {
		id = uuid.New().String()
	}
	return id, role, name, nil
}

// Disconnect unbinds a closed connection. Presence notices go out only when
// it was the participant's last session.
func (s *ClassroomService) Disconnect(handle string) {
	id, offline, ok := s.registry.Unbind(handle)
	if !ok || !offline {
		return
	}
	p, err := s.registry.Get(id)
	if err != nil {
		return
	}
	s.chat.AddSystemMessage(fmt.Sprintf("%s left the chat", p.DisplayName))

	others := EveryoneExcept(id)
	s.out.Broadcast(others, model.EventParticipantLeft, s.presence(id, p.DisplayName, p.Role, nil))
	s.out.Broadcast(others, model.EventParticipantsUpdate, s.registry.ListOnline(""))
}

// CreatePoll opens a poll on behalf of a moderator
func (s *ClassroomService) CreatePoll(actor *model.Session, req *model.CreatePollRequest) (*model.Poll, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	req.CreatedBy = actor.ParticipantID
	poll, err := s.polls.CreatePoll(req)
	if err != nil {
		return nil, err
	}
	s.chat.AddSystemMessage(fmt.Sprintf("New poll created: %q", poll.Question))
	return poll, nil
}

// SubmitAnswer records an answer from any bound participant
func (s *ClassroomService) SubmitAnswer(actor *model.Session, req *model.SubmitAnswerRequest) (*model.AnswerResult, error) {
	if err := s.checkActive(actor); err != nil {
		return nil, err
	}
	res, err := s.polls.SubmitAnswer(req.PollID, req.OptionID, actor.ParticipantID)
	if err != nil {
		return nil, err
	}
	if res.RespondentCount <= firstAnswerNotices {
		s.chat.AddSystemMessage(fmt.Sprintf("%s answered the poll", s.displayName(actor)))
	}
	if actor.Handle != "" {
		s.out.Broadcast(ToSession(actor.Handle), model.EventAnswerAccepted, res)
	}
	return res, nil
}

// EndPoll closes the active poll on behalf of a moderator
func (s *ClassroomService) EndPoll(actor *model.Session, pollID string) (*model.Poll, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	poll, err := s.polls.EndPoll(pollID, actor.ParticipantID)
	if err != nil {
		return nil, err
	}
	s.chat.AddSystemMessage(fmt.Sprintf("Poll ended: %q", poll.Question))
	return poll, nil
}

// PollHistory returns ended polls to a moderator
func (s *ClassroomService) PollHistory(actor *model.Session) ([]*model.Poll, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	return s.polls.History(), nil
}

// Kick removes a participant. The target's sessions get the kicked notice
// before they are closed; everyone else then sees the departure.
func (s *ClassroomService) Kick(actor *model.Session, targetID string) (*model.Participant, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, invalid("participantId", "participant id is required")
	}
	if targetID == actor.ParticipantID {
		return nil, invalid("participantId", "cannot kick yourself")
	}
	target, err := s.registry.Get(targetID)
	if err != nil {
		return nil, err
	}
	if target.Kicked {
		return nil, ErrParticipantNotFound
	}

	s.out.Broadcast(ToParticipant(targetID), model.EventParticipantKicked, s.presence(targetID, target.DisplayName, target.Role, actor))

	handles, kicked, err := s.registry.Kick(targetID)
	if err != nil {
		return nil, err
	}
	s.out.Disconnect(handles)

	others := EveryoneExcept(targetID)
	s.out.Broadcast(others, model.EventParticipantLeft, s.presence(targetID, kicked.DisplayName, kicked.Role, actor))
	s.out.Broadcast(others, model.EventParticipantsUpdate, s.registry.ListOnline(""))

	slog.Info("classroom: participant kicked", "participant", targetID, "by", actor.ParticipantID)
	return kicked, nil
}

// SendMessage posts a chat message. Private messages reach only the
// recipient's sessions; the sender's session always gets message_sent.
func (s *ClassroomService) SendMessage(actor *model.Session, req *model.SendMessageRequest) (*model.ChatMessage, error) {
	if err := s.checkActive(actor); err != nil {
		return nil, err
	}
	sender := *actor
	sender.DisplayName = s.displayName(actor)
	msg, err := s.chat.Send(&sender, req.Text, strings.TrimSpace(req.RecipientID))
	if err != nil {
		return nil, err
	}

	if msg.RecipientID != "" {
		s.out.Broadcast(ToParticipant(msg.RecipientID), model.EventPrivateMessage, msg)
	} else {
		s.out.Broadcast(EveryoneExcept(actor.ParticipantID), model.EventNewMessage, msg)
	}
	if actor.Handle != "" {
		s.out.Broadcast(ToSession(actor.Handle), model.EventMessageSent, msg)
	}
	return msg, nil
}

// Typing relays a typing indicator to one recipient or to everyone else
func (s *ClassroomService) Typing(actor *model.Session, recipientID string, typing bool) error {
	if err := s.checkActive(actor); err != nil {
		return err
	}
	typ := model.EventUserStoppedTyping
	if typing {
		typ = model.EventUserTyping
	}
	aud := EveryoneExcept(actor.ParticipantID)
	if recipientID = strings.TrimSpace(recipientID); recipientID != "" {
		aud = ToParticipant(recipientID)
	}
	s.out.Broadcast(aud, typ, s.presence(actor.ParticipantID, s.displayName(actor), actor.Role, nil))
	return nil
}

// Rename changes a display name. Participants may rename themselves;
// moderators may rename anyone.
func (s *ClassroomService) Rename(actor *model.Session, targetID, name string) (*model.Participant, error) {
	if err := s.checkActive(actor); err != nil {
		return nil, err
	}
	if targetID == "" {
		targetID = actor.ParticipantID
	}
	if targetID != actor.ParticipantID && actor.Role != model.RoleModerator {
		return nil, ErrNotModerator
	}
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}

	oldName, p, err := s.registry.Rename(targetID, name)
	if err != nil {
		return nil, err
	}

	payload := &model.NameUpdatedPayload{ParticipantID: targetID, OldName: oldName, NewName: name}
	s.out.Broadcast(EveryoneExcept(actor.ParticipantID), model.EventUserNameUpdated, payload)
	if actor.Handle != "" {
		s.out.Broadcast(ToSession(actor.Handle), model.EventUserNameUpdated, payload)
	}
	slog.Info("classroom: participant renamed", "participant", targetID, "old", oldName, "new", name)
	return p, nil
}

// HandleEvent dispatches one inbound WebSocket frame. Failures are replied
// to the originating connection only.
func (s *ClassroomService) HandleEvent(handle string, env *model.Envelope) {
	errType := errorEventFor(env.Type)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("classroom: event handler panic", "handle", handle, "type", env.Type, "panic", r)
			s.ReplyError(handle, errType, fmt.Errorf("panic: %v", r))
		}
	}()

	if env.Type == model.EventAuthenticate {
		var req model.AuthenticatePayload
		if err := decodePayload(env.Payload, &req); err != nil {
			s.ReplyError(handle, errType, err)
			return
		}
		if _, err := s.Authenticate(handle, &req); err != nil {
			s.ReplyError(handle, errType, err)
		}
		return
	}

	actor, ok := s.registry.Lookup(handle)
	if !ok {
		s.ReplyError(handle, errType, ErrNotAuthenticated)
		return
	}
	s.registry.Touch(handle)

	if err := s.dispatch(actor, env); err != nil {
		slog.Debug("classroom: event rejected", "handle", handle, "type", env.Type, "err", err)
		s.ReplyError(handle, errType, err)
	}
}

func (s *ClassroomService) dispatch(actor *model.Session, env *model.Envelope) error {
	switch env.Type {
	case model.EventCreatePoll:
		var req model.CreatePollRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return err
		}
		_, err := s.CreatePoll(actor, &req)
		return err

	case model.EventSubmitAnswer:
		var req model.SubmitAnswerRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return err
		}
		_, err := s.SubmitAnswer(actor, &req)
		return err

	case model.EventEndPoll:
		var req model.EndPollPayload
		if err := decodePayload(env.Payload, &req); err != nil {
			return err
		}
		_, err := s.EndPoll(actor, req.PollID)
		return err

	case model.EventKickUser:
		var req model.KickPayload
		if err := decodePayload(env.Payload, &req); err != nil {
			return err
		}
		_, err := s.Kick(actor, req.ParticipantID)
		return err

	case model.EventSendMessage:
		var req model.SendMessageRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return err
		}
		_, err := s.SendMessage(actor, &req)
		return err

	case model.EventTypingStart, model.EventTypingStop:
		var req model.TypingPayload
		if err := decodePayload(env.Payload, &req); err != nil {
			return err
		}
		return s.Typing(actor, req.RecipientID, env.Type == model.EventTypingStart)

	case model.EventUpdateUserName:
		var req model.RenameParticipantRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return err
		}
		_, err := s.Rename(actor, actor.ParticipantID, req.Name)
		return err

	case model.EventGetPollHistory:
		history, err := s.PollHistory(actor)
		if err != nil {
			return err
		}
		s.out.Broadcast(ToSession(actor.Handle), model.EventPollHistory, history)
		return nil
	}

	slog.Debug("classroom: unknown event ignored", "type", env.Type)
	return nil
}

// ReplyError sends an error event to one connection
func (s *ClassroomService) ReplyError(handle string, typ model.EventType, err error) {
	if KindOf(err) == KindInternal {
		slog.Error("classroom: internal fault", "handle", handle, "type", typ, "err", err)
	}
	s.out.Broadcast(ToSession(handle), typ, &model.ErrorPayload{
		Message: PublicMessage(err, "internal server error"),
		Reason:  Reason(err),
	})
}

func (s *ClassroomService) displayName(actor *model.Session) string {
	if p, err := s.registry.Get(actor.ParticipantID); err == nil && p.DisplayName != "" {
		return p.DisplayName
	}
	return actor.DisplayName
}

func (s *ClassroomService) presence(id, name string, role model.Role, by *model.Session) *model.PresencePayload {
	p := &model.PresencePayload{
		ParticipantID: id,
		Name:          name,
		Role:          role,
		Timestamp:     time.Now().UnixMilli(),
	}
	if by != nil {
		p.By = by.ParticipantID
		p.ByName = s.displayName(by)
	}
	return p
}

func errorEventFor(typ model.EventType) model.EventType {
	switch typ {
	case model.EventAuthenticate:
		return model.EventAuthError
	case model.EventSubmitAnswer:
		return model.EventAnswerError
	case model.EventKickUser:
		return model.EventKickError
	case model.EventSendMessage, model.EventTypingStart, model.EventTypingStop:
		return model.EventMessageError
	case model.EventUpdateUserName:
		return model.EventNameUpdateError
	}
	return model.EventPollError
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalid("payload", "malformed payload: %v", err)
	}
	return nil
}
