package service

import (
	"livepoll/internal/model"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthConfig holds the moderator credentials and signing material
type AuthConfig struct {
	Secret            string
	ModeratorUsername string
	ModeratorPassword string
	TokenTTL          time.Duration
}

// AuthService handles moderator login and participant tokens
type AuthService struct {
	moderatorUsername string
	moderatorPassword string
	jwtSecret         []byte
	tokenTTL          time.Duration
	now               func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthConfig) *AuthService {
	return &AuthService{
		moderatorUsername: cfg.ModeratorUsername,
		moderatorPassword: cfg.ModeratorPassword,
		jwtSecret:         []byte(cfg.Secret),
		tokenTTL:          cfg.TokenTTL,
		now:               time.Now,
	}
}

// Login validates moderator credentials and returns a token for a fresh
// moderator identity
func (s *AuthService) Login(username, password, name string) (*model.LoginResponse, error) {
	if s.moderatorUsername == "" || username != s.moderatorUsername || password != s.moderatorPassword {
		return nil, ErrInvalidLogin
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Teacher"
	}
	p := &model.Participant{
		ID:          "mod_" + uuid.New().String()[:8],
		DisplayName: name,
		Role:        model.RoleModerator,
		CreatedAt:   s.now(),
	}

	token, err := s.IssueToken(p)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{Token: token, Participant: p}, nil
}

// IssueToken signs the role+id handshake for a participant
func (s *AuthService) IssueToken(p *model.Participant) (string, error) {
	now := s.now()
	claims := &model.ParticipantClaims{
		ParticipantID: p.ID,
		Role:          p.Role,
		Name:          p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  p.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates a participant JWT and returns claims
func (s *AuthService) ValidateToken(tokenString string) (*model.ParticipantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.ParticipantClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.ParticipantClaims)
	if !ok || !token.Valid || claims.ParticipantID == "" {
		return nil, ErrInvalidToken
	}
	if _, ok := model.ParseRole(string(claims.Role)); !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
