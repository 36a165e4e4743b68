package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/barelle/storefront/internal/config"
	"github.com/barelle/storefront/internal/user"
)

const (
	ProviderLocal    = user.ProviderLocal
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownProvider    = errors.New("unknown or disabled login provider")
)

type Credentials struct {
	Email       string
	Password    string
	AccessToken string
}

// Verifier checks one kind of credential and resolves it to a stored user.
type Verifier interface {
	Provider() string
	Verify(ctx context.Context, creds Credentials) (*user.User, error)
}

// UserStore is the part of the user service verifiers depend on.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	FindOrCreateExternal(ctx context.Context, identity user.ExternalIdentity) (*user.User, error)
}

type LocalVerifier struct {
	users UserStore
}

func NewLocalVerifier(users UserStore) *LocalVerifier {
	return &LocalVerifier{users: users}
}

func (v *LocalVerifier) Provider() string {
	return ProviderLocal
}

func (v *LocalVerifier) Verify(ctx context.Context, creds Credentials) (*user.User, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := v.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	// OAuth-only accounts have no password hash and cannot log in locally.
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// NewVerifiers builds the verifiers enabled in cfg.Providers, keyed by
// provider name.
func NewVerifiers(cfg config.AuthConfig, users UserStore, client *http.Client) (map[string]Verifier, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	verifiers := make(map[string]Verifier, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case ProviderLocal:
			verifiers[name] = NewLocalVerifier(users)
		case ProviderGoogle:
			verifiers[name] = NewOAuthVerifier(ProviderGoogle, cfg.GoogleUserInfoURL, GoogleFields, users, client)
		case ProviderFacebook:
			verifiers[name] = NewOAuthVerifier(ProviderFacebook, cfg.FacebookUserInfoURL, FacebookFields, users, client)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}
	return verifiers, nil
}
