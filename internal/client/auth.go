package client

import (
	"context"
	"net/http"
	"net/url"
)

// Auth is the DataHub authentication service mounted under a prefix such as "auth"
type Auth struct {
	c      *Client
	prefix string
}

// NewAuth creates an auth API bound to prefix
func NewAuth(c *Client, prefix string) *Auth {
	return &Auth{c: c, prefix: prefix}
}

// Check asks whether jwt is a valid credential
func (a *Auth) Check(ctx context.Context, jwt string) (*Response, error) {
	return a.get(ctx, "auth.check", "check", url.Values{"jwt": {jwt}})
}

// Authorize requests permissions and a service token for service
func (a *Auth) Authorize(ctx context.Context, jwt, service string) (*Response, error) {
	return a.get(ctx, "auth.authorize", "authorize", url.Values{"jwt": {jwt}, "service": {service}})
}

// UpdateUsername attempts to set the username of the jwt's owner
func (a *Auth) UpdateUsername(ctx context.Context, jwt, username string) (*Response, error) {
	return a.c.Do(ctx, Request{
		Endpoint: "auth.update",
		Method:   http.MethodPost,
		Path:     []string{a.prefix, "update"},
		Query:    url.Values{"jwt": {jwt}, "username": {username}},
	})
}

// PublicKey fetches the key used to sign service tokens
func (a *Auth) PublicKey(ctx context.Context) (*Response, error) {
	return a.get(ctx, "auth.public-key", "public-key", nil)
}

// Resolve maps a username to its user id
func (a *Auth) Resolve(ctx context.Context, username string) (*Response, error) {
	return a.get(ctx, "auth.resolve", "resolve", url.Values{"username": {username}})
}

// Profile fetches the public profile of a username
func (a *Auth) Profile(ctx context.Context, username string) (*Response, error) {
	return a.get(ctx, "auth.profile", "profile", url.Values{"username": {username}})
}

func (a *Auth) get(ctx context.Context, endpoint, path string, query url.Values) (*Response, error) {
	return a.c.Do(ctx, Request{
		Endpoint: endpoint,
		Method:   http.MethodGet,
		Path:     []string{a.prefix, path},
		Query:    query,
	})
}
