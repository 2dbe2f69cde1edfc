package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthUser is the user record returned by the auth API
type AuthUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`
}

// MetaString returns a string metadata field, "" when absent
func (u *AuthUser) MetaString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	s, _ := u.UserMetadata[key].(string)
	return s
}

// Session is an authenticated session issued by the auth API
type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *AuthUser `json:"user"`
}

// Expiry returns when the access token stops being valid. It prefers the
// expires_at field and falls back to the token's exp claim.
func (s *Session) Expiry() time.Time {
	if s == nil {
		return time.Time{}
	}
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	exp, _ := TokenExpiry(s.AccessToken)
	return exp
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Verification is the backend's job; the client only needs the deadline.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// AuthEvent names an auth state transition
type AuthEvent string

const (
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// AuthListener receives auth state transitions. session is nil on sign-out.
type AuthListener func(event AuthEvent, session *Session)

// UserAttributes are the fields accepted by UpdateUser
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

var errNoSession = NewError(KindAuth, "Auth session missing!")

// refreshMargin is how close to expiry GetSession refreshes the token
const refreshMargin = 60 * time.Second

// SignUp registers a new account. metadata is stored as user metadata.
// The new account is not signed in; email confirmation is expected first.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthUser, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   map[string]any{"email": email, "password": password, "data": metadata},
		noAuth: true,
	}, &raw)
	if err != nil {
		return nil, err
	}

	// with auto-confirm enabled the API answers with a session wrapping the user
	var sess Session
	if json.Unmarshal(raw, &sess) == nil && sess.User != nil {
		return sess.User, nil
	}
	var user AuthUser
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		return nil, NewError(KindUnknown, "Sign up failed")
	}
	return &user, nil
}

// SignIn exchanges email and password for a session
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
		noAuth: true,
	}, &sess)
	if err != nil {
		return nil, err
	}
	if sess.AccessToken == "" || sess.User == nil {
		return nil, NewError(KindAuth, "Sign in failed")
	}
	c.setSession(&sess)
	c.emit(EventSignedIn, &sess)
	return &sess, nil
}

// SignOut revokes the session on the backend. The local session is dropped
// even when the backend call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.restoreSession()
	var err error
	if c.bearer(false) != c.anonKey {
		err = c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout"}, nil)
	}
	c.setSession(nil)
	c.emit(EventSignedOut, nil)
	return err
}

// ResetPassword sends a password reset mail linking back to the app
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	q := url.Values{}
	if c.cfg.ResetRedirect != "" {
		q.Set("redirect_to", c.cfg.ResetRedirect)
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  q,
		body:   map[string]string{"email": email},
		noAuth: true,
	}, nil)
}

// UpdateUser changes the signed-in user's password, email or metadata
func (c *Client) UpdateUser(ctx context.Context, attrs UserAttributes) (*AuthUser, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errNoSession
	}

	var user AuthUser
	if err := c.do(ctx, request{method: http.MethodPut, path: "/auth/v1/user", body: attrs}, &user); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		updated := *c.session
		updated.User = &user
		c.session = &updated
		sess = &updated
	}
	c.mu.Unlock()
	c.persistSession()
	c.emit(EventUserUpdated, sess)
	return &user, nil
}

// GetSession returns the current session, refreshing it when it is about to
// expire. A nil session with a nil error means nobody is signed in.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.restoreSession()

	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()
	if sess == nil {
		return nil, nil
	}

	exp := sess.Expiry()
	if exp.IsZero() || c.now().Add(refreshMargin).Before(exp) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		c.setSession(nil)
		c.emit(EventSignedOut, nil)
		return nil, nil
	}
	return c.refresh(ctx, sess.RefreshToken)
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var sess Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
		noAuth: true,
	}, &sess)
	if err != nil {
		if KindOf(err) == KindAuth {
			c.setSession(nil)
			c.emit(EventSignedOut, nil)
		}
		return nil, err
	}
	c.setSession(&sess)
	c.emit(EventTokenRefreshed, &sess)
	return &sess, nil
}

// GetUser asks the backend who the current token belongs to
func (c *Client) GetUser(ctx context.Context) (*AuthUser, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errNoSession
	}
	var user AuthUser
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// OnAuthStateChange registers fn for auth transitions and returns a func
// that removes it.
func (c *Client) OnAuthStateChange(fn AuthListener) func() {
	id := uuid.NewString()
	c.mu.Lock()
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// emit calls the listeners outside the client lock so they may call back in
func (c *Client) emit(event AuthEvent, sess *Session) {
	c.mu.RLock()
	fns := make([]AuthListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	c.log.Debugf("Event ID: AUTH_STATE_CHANGE, Description: %s", event)
	for _, fn := range fns {
		fn(event, sess)
	}
}

func (c *Client) setSession(sess *Session) {
	c.mu.Lock()
	c.session = sess
	c.restored = true
	c.mu.Unlock()
	c.persistSession()
}

func (c *Client) persistSession() {
	if c.kv == nil {
		return
	}
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()

	if sess == nil {
		if err := c.kv.Delete(SessionKey); err != nil {
			c.log.Warnf("Event ID: SESSION_PERSIST_FAILED, Description: %v", err)
		}
		return
	}
	data, err := json.Marshal(sess)
	if err == nil {
		err = c.kv.Set(SessionKey, data)
	}
	if err != nil {
		c.log.Warnf("Event ID: SESSION_PERSIST_FAILED, Description: %v", err)
	}
}

// restoreSession loads the persisted session once
func (c *Client) restoreSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restored || c.kv == nil {
		c.restored = true
		return
	}
	c.restored = true

	data, err := c.kv.Get(SessionKey)
	if err != nil || len(data) == 0 {
		return
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		c.log.Warnf("Event ID: SESSION_RESTORE_FAILED, Description: %v", err)
		return
	}
	c.session = &sess
}
