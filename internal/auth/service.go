package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/barelle/storefront/internal/user"
)

var ErrAccountDisabled = errors.New("account is disabled")

type LoginResult struct {
	User      *user.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

type Service interface {
	Login(ctx context.Context, provider string, creds Credentials) (*LoginResult, error)
	IssueFor(u *user.User) (*LoginResult, error)
	Authenticate(token string) (*Identity, error)
	Providers() []string
}

type service struct {
	verifiers map[string]Verifier
	tokens    *TokenIssuer
}

func NewService(verifiers map[string]Verifier, tokens *TokenIssuer) Service {
	return &service{verifiers: verifiers, tokens: tokens}
}

func (s *service) Login(ctx context.Context, provider string, creds Credentials) (*LoginResult, error) {
	if provider == "" {
		provider = ProviderLocal
	}
	v, ok := s.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	u, err := v.Verify(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, user.ErrEmailExists) {
			log.Warn().Str("provider", provider).Msg("service: login rejected")
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Str("provider", provider).Msg("service: credential verification failed")
		return nil, fmt.Errorf("service: credential verification failed: %w", err)
	}
	if !u.IsActive {
		log.Warn().Stringer("user_id", u.ID).Msg("service: login to disabled account")
		return nil, ErrAccountDisabled
	}

	result, err := s.IssueFor(u)
	if err != nil {
		return nil, err
	}
	log.Info().Stringer("user_id", u.ID).Str("provider", provider).Msg("service: user logged in")
	return result, nil
}

func (s *service) IssueFor(u *user.User) (*LoginResult, error) {
	token, expiresAt, err := s.tokens.Issue(u)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to issue token")
		return nil, fmt.Errorf("service: failed to issue token: %w", err)
	}
	return &LoginResult{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *service) Authenticate(token string) (*Identity, error) {
	return s.tokens.Parse(token)
}

func (s *service) Providers() []string {
	names := make([]string, 0, len(s.verifiers))
	for name := range s.verifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
