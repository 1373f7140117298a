package model

import "time"

// ChatMessage is one entry in the chat log
type ChatMessage struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	SenderID    string    `json:"senderId"`
	SenderRole  Role      `json:"senderRole"`
	SenderName  string    `json:"senderName,omitempty"`
	RecipientID string    `json:"recipientId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	IsSystem    bool      `json:"isSystem"`
}

// ChatStats summarizes the chat log
type ChatStats struct {
	TotalMessages      int `json:"totalMessages"`
	TotalParticipants  int `json:"totalParticipants"`
	ActiveParticipants int `json:"activeParticipants"`
	SystemMessages     int `json:"systemMessages"`
	PrivateMessages    int `json:"privateMessages"`
	BroadcastMessages  int `json:"broadcastMessages"`
}

// SendMessageRequest is the request body for posting a chat message
type SendMessageRequest struct {
	Text        string `json:"text"`
	RecipientID string `json:"recipientId,omitempty"`
}
