package service

import (
	"fmt"
	"livepoll/internal/idgen"
	"livepoll/internal/model"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Chat defaults
const (
	DefaultChatMaxMessages = 1000
	DefaultChatMaxLength   = 500
	systemSenderRole       = model.Role("system")
)

// ChatService keeps a bounded in-memory chat log
type ChatService struct {
	mu          sync.RWMutex
	messages    []model.ChatMessage
	maxMessages int
	maxLength   int
	registry    *SessionRegistry
	now         func() time.Time
}

// NewChatService creates a chat log. Non-positive limits fall back to the defaults.
func NewChatService(registry *SessionRegistry, maxMessages, maxLength int) *ChatService {
	if maxMessages <= 0 {
		maxMessages = DefaultChatMaxMessages
	}
	if maxLength <= 0 {
		maxLength = DefaultChatMaxLength
	}
	return &ChatService{
		maxMessages: maxMessages,
		maxLength:   maxLength,
		registry:    registry,
		now:         time.Now,
	}
}

// Send validates and stores a participant message
func (s *ChatService) Send(sender *model.Session, text, recipientID string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text", "message text is required")
	}
	if len([]rune(text)) > s.maxLength {
		return nil, invalid("text", "message exceeds %d characters", s.maxLength)
	}
	if recipientID == sender.ParticipantID {
		return nil, invalid("recipientId", "cannot send a private message to yourself")
	}
	if recipientID != "" && s.registry != nil {
		if _, err := s.registry.Get(recipientID); err != nil {
			return nil, err
		}
	}

	id, err := idgen.Message()
	if err != nil {
		return nil, fmt.Errorf("chat: allocate message id: %w", err)
	}
	msg := model.ChatMessage{
		ID:          id,
		Text:        text,
		SenderID:    sender.ParticipantID,
		SenderRole:  sender.Role,
		SenderName:  sender.DisplayName,
		RecipientID: recipientID,
		Timestamp:   s.now(),
	}
	s.append(msg)

	slog.Debug("chat: message added", "sender", sender.ParticipantID, "private", recipientID != "")
	return &msg, nil
}

// AddSystemMessage stores a server-generated notice
func (s *ChatService) AddSystemMessage(text string) *model.ChatMessage {
	id, err := idgen.Message()
	if err != nil {
		slog.Error("chat: allocate system message id", "err", err)
		return nil
	}
	msg := model.ChatMessage{
		ID:         id,
		Text:       text,
		SenderID:   model.SystemActor,
		SenderRole: systemSenderRole,
		Timestamp:  s.now(),
		IsSystem:   true,
	}
	s.append(msg)
	slog.Debug("chat: system message added", "text", text)
	return &msg
}

func (s *ChatService) append(msg model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if over := len(s.messages) - s.maxMessages; over > 0 {
		s.messages = append([]model.ChatMessage(nil), s.messages[over:]...)
	}
}

// History returns up to limit public messages older than before (zero time
// means no bound), oldest first
func (s *ChatService) History(limit int, before time.Time) []model.ChatMessage {
	return s.collect(limit, func(m *model.ChatMessage) bool {
		if m.RecipientID != "" {
			return false
		}
		return before.IsZero() || m.Timestamp.Before(before)
	})
}

// Private returns the conversation between two participants, oldest first
func (s *ChatService) Private(a, b string, limit int) []model.ChatMessage {
	return s.collect(limit, func(m *model.ChatMessage) bool {
		return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
	})
}

// BySender returns a participant's recent messages, oldest first
func (s *ChatService) BySender(senderID string, limit int) []model.ChatMessage {
	return s.collect(limit, func(m *model.ChatMessage) bool {
		return m.SenderID == senderID
	})
}

// Search returns public messages containing query, newest first
func (s *ChatService) Search(query string, limit int) []model.ChatMessage {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return nil
	}
	found := s.collect(limit, func(m *model.ChatMessage) bool {
		return m.RecipientID == "" && strings.Contains(strings.ToLower(m.Text), term)
	})
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found
}

// collect walks the log newest first and returns the last limit matches in
// chronological order
func (s *ChatService) collect(limit int, match func(*model.ChatMessage) bool) []model.ChatMessage {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ChatMessage, 0, limit)
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if match(&s.messages[i]) {
			out = append(out, s.messages[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Stats summarizes the log
func (s *ChatService) Stats() *model.ChatStats {
	s.mu.RLock()
	stats := &model.ChatStats{TotalMessages: len(s.messages)}
	for _, m := range s.messages {
		switch {
		case m.IsSystem:
			stats.SystemMessages++
		case m.RecipientID != "":
			stats.PrivateMessages++
		}
	}
	s.mu.RUnlock()

	stats.BroadcastMessages = stats.TotalMessages - stats.SystemMessages - stats.PrivateMessages
	if s.registry != nil {
		ps := s.registry.Stats()
		stats.TotalParticipants = ps.TotalUsers
		stats.ActiveParticipants = ps.ActiveUsers
	}
	return stats
}

// Clear empties the log
func (s *ChatService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	slog.Info("chat: all chat data cleared")
}
