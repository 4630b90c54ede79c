package service

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/datahub-healthcheck/internal/client"
)

// TokenSource fetches short-lived service tokens from the auth service.
// Tokens are never cached; every call performs a fresh authorize request.
type TokenSource struct {
	auth *client.Auth
	jwt  string
}

// NewTokenSource creates a token source for the given credential
func NewTokenSource(auth *client.Auth, jwt string) *TokenSource {
	return &TokenSource{auth: auth, jwt: jwt}
}

// Token returns a service token scoped to service
func (t *TokenSource) Token(ctx context.Context, service string) (string, error) {
	resp, err := t.auth.Authorize(ctx, t.jwt, service)
	if err != nil {
		return "", fmt.Errorf("failed to authorize for %s: %w", service, err)
	}

	body, err := resp.JSON()
	if err != nil {
		return "", fmt.Errorf("failed to authorize for %s: %w", service, err)
	}

	token, _ := body["token"].(string)
	if token == "" {
		return "", fmt.Errorf("authorize for %s returned no token (status %d)", service, resp.StatusCode)
	}

	return token, nil
}
