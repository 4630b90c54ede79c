package service

import (
	"context"
	"net/http"

	"github.com/prperemyshlev/datahub-healthcheck/internal/assertion"
	"github.com/prperemyshlev/datahub-healthcheck/internal/client"
	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
)

// Auth service error messages
const (
	MsgNotAuthenticated = "Not authenticated"
	MsgUsernameSet      = "Cannot modify username, already set"
)

const (
	invalidJWT      = "wrong"
	invalidJWTAlt   = "invalid"
	invalidService  = "service"
	invalidUsername = "invalid"
	updateUsername  = "tester"
)

// ExpectedPermissions is what the auth service grants the health check account
// for both the source and the rawstore services.
var ExpectedPermissions = map[string]any{"max_dataset_num": 2}

type authCall func(ctx context.Context) (*client.Response, error)

// CheckAuth validates authentication, per-service authorization, username
// immutability and username resolution.
func (r *Runner) CheckAuth(ctx context.Context) error {
	jwt, username, ownerID := r.identity.Token, r.identity.Username, r.identity.OwnerID

	steps := []struct {
		call   authCall
		status string
		checks []bodyCheck
	}{
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Check(ctx, invalidJWT) },
			status: "Auth check not authenticated: status 200",
			checks: []bodyCheck{expectField("Auth check not authenticated: authenticated is false", "authenticated", false)},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Check(ctx, jwt) },
			status: "Auth check authenticated: status 200",
			checks: []bodyCheck{expectField("Auth check authenticated: authenticated is true", "authenticated", true)},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Authorize(ctx, invalidJWT, invalidService) },
			status: "Auth authorize invalid jwt: status 200",
			checks: []bodyCheck{expectField("Auth authorize invalid jwt: no permissions", "permissions", map[string]any{})},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Authorize(ctx, jwt, invalidService) },
			status: "Auth authorize invalid service: status 200",
			checks: []bodyCheck{expectField("Auth authorize invalid service: no permissions", "permissions", map[string]any{})},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Authorize(ctx, jwt, "source") },
			status: "Auth authorize success for source: status 200",
			checks: []bodyCheck{expectField("Auth authorize success for source: permissions there", "permissions", ExpectedPermissions)},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Authorize(ctx, jwt, "source") },
			status: "Auth authorize success for source service: status 200",
			checks: []bodyCheck{expectField("Auth authorize success for source service: permissions there", "permissions", ExpectedPermissions)},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Authorize(ctx, jwt, "rawstore") },
			status: "Auth authorize success for rawstore service: status 200",
			checks: []bodyCheck{expectField("Auth authorize success for rawstore service: permissions there", "permissions", ExpectedPermissions)},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.UpdateUsername(ctx, invalidJWTAlt, updateUsername) },
			status: "Auth update invalid jwt: status 200",
			checks: []bodyCheck{
				expectField("Auth update invalid jwt: success false", "success", false),
				expectMessage("Auth update invalid jwt: error message is correct", "error", MsgNotAuthenticated),
			},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.UpdateUsername(ctx, jwt, updateUsername) },
			status: "Auth update valid jwt: status 200",
			checks: []bodyCheck{
				expectField("Auth update valid jwt: success false", "success", false),
				expectMessage("Auth update valid jwt: error message is correct", "error", MsgUsernameSet),
			},
		},
		{
			call:   r.auth.PublicKey,
			status: "Auth public key: status 200",
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Resolve(ctx, username) },
			status: "Auth resolve valid username: status 200",
			checks: []bodyCheck{expectField("Auth resolve valid username: correct userid", "userid", ownerID)},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Resolve(ctx, invalidUsername) },
			status: "Auth resolve invalid username: status 200",
			checks: []bodyCheck{expectField("Auth resolve invalid username: userid null", "userid", nil)},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Profile(ctx, username) },
			status: "Auth profile valid username: status 200",
			checks: []bodyCheck{expectField("Auth profile valid username: correct userid", "userid", ownerID)},
		},
		{
			call:   func(ctx context.Context) (*client.Response, error) { return r.auth.Profile(ctx, invalidUsername) },
			status: "Auth profile invalid username: status 200",
			checks: []bodyCheck{expectField("Auth profile invalid username: userid null", "userid", nil)},
		},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.authStep(ctx, step.call, step.status, step.checks...)
	}

	return ctx.Err()
}

func (r *Runner) authStep(ctx context.Context, call authCall, statusName string, checks ...bodyCheck) {
	const group = domain.GroupAuth

	resp, err := call(ctx)
	if err != nil {
		r.record(ctx, group, assertion.Failed(statusName, err))
		for _, c := range checks {
			r.record(ctx, group, assertion.Failed(c.name, err))
		}
		return
	}

	r.record(ctx, group, assertion.Status(statusName, resp.StatusCode, http.StatusOK))
	if len(checks) > 0 {
		r.bodyChecks(ctx, group, resp, checks...)
	}
}
