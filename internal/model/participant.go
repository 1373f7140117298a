package model

import (
	"strings"
	"time"
)

// Role is the classroom role a participant acts under
type Role string

const (
	RoleModerator  Role = "moderator"
	RoleRespondent Role = "respondent"
)

// ParseRole accepts the canonical role names and the classroom aliases
// "teacher" and "student".
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "moderator", "teacher":
		return RoleModerator, true
	case "respondent", "student":
		return RoleRespondent, true
	}
	return "", false
}

// Participant is an identity known to the session registry
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"name"`
	Role        Role      `json:"role"`
	Connected   bool      `json:"connected"`
	Kicked      bool      `json:"kicked,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastSeenAt  time.Time `json:"lastSeen"`
}

// ParticipantStats summarizes the directory
type ParticipantStats struct {
	TotalUsers   int `json:"totalUsers"`
	ActiveUsers  int `json:"activeUsers"`
	Moderators   int `json:"moderators"`
	Respondents  int `json:"respondents"`
	OfflineUsers int `json:"offlineUsers"`
}

// CreateParticipantRequest is the request body for registering a participant
type CreateParticipantRequest struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// RenameParticipantRequest is the request body for changing a display name
type RenameParticipantRequest struct {
	Name string `json:"name"`
}

// ParticipantJoinResponse is returned when a participant registers
type ParticipantJoinResponse struct {
	Participant *Participant `json:"participant"`
	Token       string       `json:"token"`
}
