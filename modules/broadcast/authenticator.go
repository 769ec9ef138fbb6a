package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/collab-workspace/domain/apperr"
	"github.com/example/collab-workspace/domain/user"
	"github.com/gofiber/contrib/websocket"
)

var (
	// ErrMissingCredential is returned when the handshake carries no credential.
	ErrMissingCredential = fmt.Errorf("%w: missing credential", apperr.ErrAuthentication)
	// ErrInvalidCredential is returned when the credential is malformed,
	// expired or revoked.
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", apperr.ErrAuthentication)
	// ErrUnknownProject is returned when the requested project does not exist.
	ErrUnknownProject = fmt.Errorf("%w: unknown project", apperr.ErrAuthorizationTarget)
)

// Rejection reasons sent in the close frame of a refused connection.
const (
	ReasonMissingCredential = "missing_credential"
	ReasonInvalidCredential = "invalid_credential"
	ReasonUnknownProject    = "unknown_project"
	ReasonStoreUnavailable  = "store_unavailable"
)

// CredentialValidator checks a credential against its signature, expiry and
// the revocation store.
type CredentialValidator interface {
	ValidateToken(ctx context.Context, token string) (*user.Claims, error)
}

// ProjectLookup checks that a project exists.
type ProjectLookup interface {
	Exists(ctx context.Context, projectID string) (bool, error)
}

// Handshake is what a client presents when it opens a connection.
type Handshake struct {
	Token               string
	AuthorizationHeader string
	ProjectID           string
}

// Credential returns the handshake token, falling back to a bearer
// Authorization header.
func (h Handshake) Credential() string {
	if token := strings.TrimSpace(h.Token); token != "" {
		return token
	}
	return user.BearerToken(h.AuthorizationHeader)
}

// Identity is an admitted connection's authenticated user and project.
type Identity struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	ProjectID string `json:"projectId"`
}

// Authenticator admits connections. It runs once per connection.
type Authenticator struct {
	validator CredentialValidator
	projects  ProjectLookup
	registry  *Registry
}

// NewAuthenticator creates an authenticator joining admitted connections
// into registry.
func NewAuthenticator(validator CredentialValidator, projects ProjectLookup, registry *Registry) *Authenticator {
	return &Authenticator{
		validator: validator,
		projects:  projects,
		registry:  registry,
	}
}

// Authenticate validates the handshake and joins c to the project room. On
// failure c is left unjoined.
func (a *Authenticator) Authenticate(ctx context.Context, hs Handshake, c *Conn) (Identity, error) {
	credential := hs.Credential()
	if credential == "" {
		return Identity{}, ErrMissingCredential
	}

	claims, err := a.validator.ValidateToken(ctx, credential)
	if err != nil {
		if errors.Is(err, apperr.ErrStoreUnavailable) {
			return Identity{}, fmt.Errorf("failed to validate credential: %w", err)
		}
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	if hs.ProjectID == "" {
		return Identity{}, ErrUnknownProject
	}
	exists, err := a.projects.Exists(ctx, hs.ProjectID)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to look up project: %w", err)
	}
	if !exists {
		return Identity{}, ErrUnknownProject
	}

	if err := c.authenticate(claims.UserID, claims.Email, hs.ProjectID); err != nil {
		return Identity{}, err
	}
	if err := a.registry.Join(ProjectRoom(hs.ProjectID), c); err != nil {
		return Identity{}, err
	}

	return Identity{UserID: claims.UserID, Email: claims.Email, ProjectID: hs.ProjectID}, nil
}

// RejectReason maps an admission error to its close reason and code.
func RejectReason(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return websocket.ClosePolicyViolation, ReasonMissingCredential
	case errors.Is(err, ErrUnknownProject):
		return websocket.ClosePolicyViolation, ReasonUnknownProject
	case errors.Is(err, apperr.ErrAuthentication):
		return websocket.ClosePolicyViolation, ReasonInvalidCredential
	default:
		return websocket.CloseInternalServerErr, ReasonStoreUnavailable
	}
}
