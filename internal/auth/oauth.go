package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/barelle/storefront/internal/user"
)

// UserInfoFields names the JSON keys a provider's userinfo endpoint uses.
type UserInfoFields struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

var (
	GoogleFields   = UserInfoFields{Subject: "sub", Email: "email", FirstName: "given_name", LastName: "family_name"}
	FacebookFields = UserInfoFields{Subject: "id", Email: "email", FirstName: "first_name", LastName: "last_name"}
)

// OAuthVerifier accepts an access token obtained by the client from the
// provider and resolves it through the provider's userinfo endpoint.
type OAuthVerifier struct {
	provider string
	url      string
	fields   UserInfoFields
	users    UserStore
	client   *http.Client
}

func NewOAuthVerifier(provider, url string, fields UserInfoFields, users UserStore, client *http.Client) *OAuthVerifier {
	return &OAuthVerifier{provider: provider, url: url, fields: fields, users: users, client: client}
}

func (v *OAuthVerifier) Provider() string {
	return v.provider
}

func (v *OAuthVerifier) Verify(ctx context.Context, creds Credentials) (*user.User, error) {
	if creds.AccessToken == "" {
		return nil, ErrInvalidCredentials
	}

	identity, err := v.fetchIdentity(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}
	return v.users.FindOrCreateExternal(ctx, *identity)
}

func (v *OAuthVerifier) fetchIdentity(ctx context.Context, accessToken string) (*user.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build userinfo request: %w", v.provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: userinfo request failed: %w", v.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: userinfo returned status %d", v.provider, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: failed to decode userinfo: %w", v.provider, err)
	}

	identity := &user.ExternalIdentity{
		Provider:  v.provider,
		Subject:   stringField(payload, v.fields.Subject),
		Email:     stringField(payload, v.fields.Email),
		FirstName: stringField(payload, v.fields.FirstName),
		LastName:  stringField(payload, v.fields.LastName),
	}
	if identity.Subject == "" || identity.Email == "" {
		return nil, ErrInvalidCredentials
	}
	// Google reports whether the address is confirmed; an unconfirmed one
	// could belong to someone else.
	if verified, ok := payload["email_verified"].(bool); ok && !verified {
		return nil, ErrInvalidCredentials
	}
	return identity, nil
}

func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
