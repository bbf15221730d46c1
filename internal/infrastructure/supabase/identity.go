package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY CLIENT (GoTrue)
// Authentication is wholly delegated to Supabase: the backend never sees a
// password, it only resolves bearer tokens into identities.
// ══════════════════════════════════════════════════════════════════════════════

// Identity is the resolved owner of an access token.
type Identity struct {
	ID    shared.UserID
	Email string
	Role  shared.Role
}

// IdentityClient resolves GoTrue access tokens.
type IdentityClient struct {
	client *client
}

// NewIdentityClient creates a new IdentityClient.
func NewIdentityClient(cfg Config) *IdentityClient {
	return &IdentityClient{client: newClient(cfg, "gotrue")}
}

// gotrueUser is the GoTrue /user response shape, reduced to what we read.
type gotrueUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Role     string `json:"role"`
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

// CurrentUser resolves an access token into an identity.
// Returns shared.ErrInvalidAccessToken for rejected tokens and
// shared.ErrIdentityUnavailable when GoTrue cannot be reached.
func (c *IdentityClient) CurrentUser(ctx context.Context, accessToken string) (Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Identity{}, shared.ErrInvalidAccessToken
	}

	var user gotrueUser
	err := c.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: accessToken,
	}, &user)
	if err != nil {
		var httpErr *httpError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
			return Identity{}, shared.ErrInvalidAccessToken
		}
		return Identity{}, shared.WrapError("identity", "CurrentUser", shared.ErrIdentityUnavailable, "gotrue request failed", err)
	}

	userID, err := shared.NewUserID(user.ID)
	if err != nil {
		return Identity{}, shared.ErrInvalidAccessToken
	}

	return Identity{
		ID:    userID,
		Email: user.Email,
		Role:  resolveRole(user),
	}, nil
}

// SignOut revokes the access token's session.
func (c *IdentityClient) SignOut(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return shared.ErrInvalidAccessToken
	}

	err := c.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		bearer: accessToken,
	}, nil)
	if err != nil {
		var httpErr *httpError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return shared.ErrInvalidAccessToken
		}
		return shared.WrapError("identity", "SignOut", shared.ErrIdentityUnavailable, "gotrue request failed", err)
	}
	return nil
}

// resolveRole reads the role claim. app_metadata wins over user_metadata;
// anything unknown collapses to student.
func resolveRole(user gotrueUser) shared.Role {
	for _, claim := range []string{user.AppMetadata.Role, user.UserMetadata.Role} {
		role := shared.Role(claim)
		if role.IsValid() {
			return role
		}
	}
	return shared.RoleStudent
}
