package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
	"github.com/nikhilbhutani/rentalcore/internal/store"
	"github.com/nikhilbhutani/rentalcore/internal/tenant"
)

// Service exchanges credentials for access tokens.
type Service struct {
	users  store.UserRepository
	tokens *Tokens
}

func NewService(users store.UserRepository, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks the password against the stored bcrypt hash. Unknown emails,
// wrong passwords and inactive accounts fail the same way.
func (s *Service) Login(ctx context.Context, in LoginInput) (Token, error) {
	u, err := s.users.GetByEmail(tenant.System(ctx), strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive || u.PasswordHash == "" {
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	tok, err := s.tokens.Issue(*u)
	if err != nil {
		return Token{}, err
	}
	slog.Info("user logged in", "user_id", u.ID, "org_id", u.OwnerOrgID())
	return tok, nil
}
