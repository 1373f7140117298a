package model

import "github.com/golang-jwt/jwt/v5"

// ParticipantClaims are JWT claims carrying the role+id handshake
type ParticipantClaims struct {
	ParticipantID string `json:"participantId"`
	Role          Role   `json:"role"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for moderator login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginResponse is returned after successful moderator login
type LoginResponse struct {
	Token       string       `json:"token"`
	Participant *Participant `json:"participant"`
}
