// Package identity holds the authenticated principal and its bearer
// credential. It is the only component allowed to mutate the credential;
// every other remote-call issuer reads it through the api.CredentialSource
// capability this package implements.
package identity

import (
	"context"
	"sync"

	"github.com/odvcencio/codecanvas/pkg/api"
	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
	"github.com/odvcencio/codecanvas/pkg/logging"
	"github.com/odvcencio/codecanvas/pkg/storage"
)

// Principal is the authenticated identity of the current user.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
}

// AuthAPI is the slice of the backend client the identity context needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.TokenResponse, error)
	Register(ctx context.Context, email, password, name string) (*api.UserRecord, error)
	Me(ctx context.Context) (*api.UserRecord, error)
}

// Context is the identity store: current principal plus bearer credential,
// persisted across process restarts.
type Context struct {
	mu        sync.RWMutex
	principal *Principal
	token     string

	store  *storage.Store
	apiC   AuthAPI
	logger *logging.Logger
}

// New constructs an identity context backed by the given store. The store
// may be nil, in which case the credential lives only in memory.
func New(store *storage.Store, logger *logging.Logger) *Context {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Context{
		store:  store,
		logger: logger,
	}
}

// UseAPI attaches the auth exchange client. Set once at startup; the api
// client itself reads the credential back through this context, so the two
// are built in sequence.
func (c *Context) UseAPI(a AuthAPI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiC = a
}

// Load restores a persisted credential, if any.
func (c *Context) Load() error {
	if c.store == nil {
		return nil
	}

	cred, err := c.store.LoadCredential()
	if err != nil {
		return canvaserrors.Wrap(err, canvaserrors.ErrCodeStorageRead, "loading credential")
	}
	if cred == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = &Principal{
		ID:          cred.PrincipalID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
	}
	c.token = cred.AccessToken
	return nil
}

// Login exchanges credentials for a token, resolves the principal record,
// and persists both.
func (c *Context) Login(ctx context.Context, email, password string) (*Principal, error) {
	c.mu.RLock()
	apiC := c.apiC
	c.mu.RUnlock()
	if apiC == nil {
		return nil, canvaserrors.New(canvaserrors.ErrCodeInternal, "identity context has no auth client")
	}

	tok, err := apiC.Login(ctx, email, password)
	if err != nil {
		c.logger.Warn(logging.CategoryAuth, "login_failed", err.Error(), nil)
		return nil, err
	}

	// Hold the token before Me so the bearer header is present.
	c.mu.Lock()
	c.token = tok.AccessToken
	c.mu.Unlock()

	user, err := apiC.Me(ctx)
	if err != nil {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return nil, err
	}

	principal := &Principal{ID: user.ID, Email: user.Email, DisplayName: user.Name}

	c.mu.Lock()
	c.principal = principal
	c.mu.Unlock()

	c.persist(principal, tok.AccessToken)
	c.logger.Info(logging.CategoryAuth, "login", "signed in", map[string]any{"principal_id": principal.ID})

	out := *principal
	return &out, nil
}

// Register creates an account and signs in.
func (c *Context) Register(ctx context.Context, email, password, name string) (*Principal, error) {
	c.mu.RLock()
	apiC := c.apiC
	c.mu.RUnlock()
	if apiC == nil {
		return nil, canvaserrors.New(canvaserrors.ErrCodeInternal, "identity context has no auth client")
	}

	if _, err := apiC.Register(ctx, email, password, name); err != nil {
		c.logger.Warn(logging.CategoryAuth, "register_failed", err.Error(), nil)
		return nil, err
	}
	return c.Login(ctx, email, password)
}

// Logout clears the principal and credential, in memory and on disk.
func (c *Context) Logout() {
	c.mu.Lock()
	c.principal = nil
	c.token = ""
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ClearCredential(); err != nil {
			c.logger.Error(logging.CategoryAuth, "logout_persist_failed", err.Error(), nil)
		}
	}
	c.logger.Info(logging.CategoryAuth, "logout", "signed out", nil)
}

// CurrentPrincipal returns a copy of the signed-in principal, or nil.
func (c *Context) CurrentPrincipal() *Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.principal == nil {
		return nil
	}
	out := *c.principal
	return &out
}

// IsAuthenticated reports whether a principal is signed in.
func (c *Context) IsAuthenticated() bool {
	return c.CurrentPrincipal() != nil
}

// Credential returns the bearer credential, implementing api.CredentialSource.
func (c *Context) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// AuthHeaders produces the request headers for authenticated calls.
func (c *Context) AuthHeaders() map[string]string {
	tok := c.Credential()
	if tok == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

func (c *Context) persist(principal *Principal, token string) {
	if c.store == nil {
		return
	}
	err := c.store.SaveCredential(storage.Credential{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		AccessToken: token,
	})
	if err != nil {
		c.logger.Error(logging.CategoryAuth, "credential_persist_failed", err.Error(), nil)
	}
}
