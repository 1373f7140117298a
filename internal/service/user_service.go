package service

import (
	"livepoll/internal/model"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// MinNameLength is the shortest accepted display name
const MinNameLength = 2

// UserService handles participant directory operations
type UserService struct {
	registry *SessionRegistry
	auth     *AuthService
}

// NewUserService creates a new user service
func NewUserService(registry *SessionRegistry, auth *AuthService) *UserService {
	return &UserService{registry: registry, auth: auth}
}

// NormalizeName trims a display name and checks its length
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < MinNameLength {
		return "", invalid("name", "name must be at least %d characters", MinNameLength)
	}
	return name, nil
}

// Create registers a participant and signs its token. Role defaults to respondent.
func (s *UserService) Create(req *model.CreateParticipantRequest) (*model.ParticipantJoinResponse, error) {
	name, err := NormalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	role := model.RoleRespondent
	if req.Role != "" {
		r, ok := model.ParseRole(req.Role)
		if !ok {
			return nil, invalid("role", "unknown role %q", req.Role)
		}
		role = r
	}
	if role == model.RoleModerator {
		return nil, ErrNotModerator
	}

	p := &model.Participant{
		ID:          uuid.New().String(),
		DisplayName: name,
		Role:        role,
	}
	if err := s.registry.Register(p); err != nil {
		return nil, err
	}

	token, err := s.auth.IssueToken(p)
	if err != nil {
		return nil, err
	}

	created, err := s.registry.Get(p.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("users: participant created", "participant", p.ID, "name", name)
	return &model.ParticipantJoinResponse{Participant: created, Token: token}, nil
}

// Get returns a participant by id
func (s *UserService) Get(id string) (*model.Participant, error) {
	return s.registry.Get(id)
}

// Online returns connected participants, optionally filtered by role
func (s *UserService) Online(role model.Role) []model.Participant {
	return s.registry.ListOnline(role)
}

// Search matches display names, case-insensitive
func (s *UserService) Search(query string, limit int) []model.Participant {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	return s.registry.Search(query, limit)
}

// Stats summarizes the directory
func (s *UserService) Stats() *model.ParticipantStats {
	return s.registry.Stats()
}
