package model

import "time"

// Session binds one live connection to one participant
type Session struct {
	Handle        string    `json:"handle"`
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"name"`
	Role          Role      `json:"role"`
	BoundAt       time.Time `json:"boundAt"`
}
