package store

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
)

// AuthGateway is the part of the gateway the auth store uses
type AuthGateway interface {
	SignIn(ctx context.Context, email, password string) (*gateway.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*gateway.AuthUser, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	UpdateUser(ctx context.Context, attrs gateway.UserAttributes) (*gateway.AuthUser, error)
	GetSession(ctx context.Context) (*gateway.Session, error)
	GetUser(ctx context.Context) (*gateway.AuthUser, error)
	OnAuthStateChange(fn gateway.AuthListener) func()
}

// ProfileUpdate holds the profile fields to change; nil fields are kept
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Avatar    *string
}

type authSlice struct {
	User            *models.User `json:"user"`
	Token           string       `json:"token"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

// AuthStore owns the signed-in identity and its access token
type AuthStore struct {
	gw    AuthGateway
	cache Cache
	log   logrus.FieldLogger
	now   func() time.Time

	pending Pending

	mu    sync.RWMutex
	user  *models.User
	token string

	stopEvents func()
}

// NewAuthStore restores the persisted auth slice and starts following the
// gateway's auth events
func NewAuthStore(gw AuthGateway, cache Cache, opts ...Option) *AuthStore {
	o := newOptions(opts)
	s := &AuthStore{gw: gw, cache: cache, log: o.log, now: o.now}

	var slice authSlice
	if load(cache, s.log, AuthKey, &slice) && slice.IsAuthenticated && slice.User != nil {
		s.user = slice.User
		s.token = slice.Token
	}
	s.stopEvents = gw.OnAuthStateChange(s.onAuthEvent)
	return s
}

// Close stops following auth events
func (s *AuthStore) Close() {
	if s.stopEvents != nil {
		s.stopEvents()
		s.stopEvents = nil
	}
}

func (s *AuthStore) onAuthEvent(event gateway.AuthEvent, sess *gateway.Session) {
	switch event {
	case gateway.EventSignedIn, gateway.EventTokenRefreshed, gateway.EventUserUpdated:
		if sess != nil && sess.User != nil {
			s.setSession(sess)
		}
	case gateway.EventSignedOut:
		s.clear()
	}
}

// User returns a copy of the signed-in user, nil when signed out
func (s *AuthStore) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Token returns the current access token
func (s *AuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether a user is signed in with a token that has
// not expired
func (s *AuthStore) IsAuthenticated() bool {
	s.mu.RLock()
	user, token := s.user, s.token
	s.mu.RUnlock()
	if user == nil || token == "" {
		return false
	}
	if exp, ok := gateway.TokenExpiry(token); ok && !s.now().Before(exp) {
		return false
	}
	return true
}

// IsLoading reports whether any auth action is in flight
func (s *AuthStore) IsLoading() bool { return s.pending.Any() }

// IsPending reports whether op is in flight
func (s *AuthStore) IsPending(op string) bool { return s.pending.IsPending(op, "") }

func (s *AuthStore) setSession(sess *gateway.Session) {
	user := userFromAuth(sess.User)
	s.mu.Lock()
	s.user = &user
	s.token = sess.AccessToken
	s.mu.Unlock()
	s.persist()
}

func (s *AuthStore) setUser(user models.User) {
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	s.persist()
}

func (s *AuthStore) clear() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()
	s.persist()
}

func (s *AuthStore) persist() {
	s.mu.RLock()
	slice := authSlice{User: s.user, Token: s.token, IsAuthenticated: s.user != nil && s.token != ""}
	s.mu.RUnlock()
	save(s.cache, s.log, AuthKey, slice)
}

// SignIn exchanges credentials for a session. On failure the previous user
// and token are left as they were.
func (s *AuthStore) SignIn(ctx context.Context, email, password string) error {
	defer s.pending.Begin("signIn", "")()

	sess, err := s.gw.SignIn(ctx, email, password)
	if err != nil {
		return fail(s.log, "sign_in", err)
	}
	if sess == nil || sess.User == nil {
		return fail(s.log, "sign_in", gateway.NewError(gateway.KindAuth, "Sign in failed"))
	}
	s.setSession(sess)
	s.log.Infof("Event ID: SIGNED_IN, Description: user %s signed in", sess.User.ID)
	return nil
}

// SignUp registers an account. The new user is not signed in.
func (s *AuthStore) SignUp(ctx context.Context, email, password, firstName, lastName string) error {
	if !models.ValidEmail(email) {
		return validation("Please enter a valid email address")
	}
	if !models.ValidPassword(password) {
		return validation("Password must be at least 8 characters and contain upper and lower case letters, a number and a special character")
	}
	defer s.pending.Begin("signUp", "")()

	user, err := s.gw.SignUp(ctx, email, password, map[string]any{
		"firstName": firstName,
		"lastName":  lastName,
	})
	if err != nil {
		return fail(s.log, "sign_up", err)
	}
	if user == nil {
		return fail(s.log, "sign_up", gateway.NewError(gateway.KindUnknown, "Sign up failed"))
	}
	s.log.Infof("Event ID: SIGNED_UP, Description: user %s registered", user.ID)
	return nil
}

// SignOut ends the session. Local state is cleared even when the gateway
// call fails; that failure is still returned.
func (s *AuthStore) SignOut(ctx context.Context) error {
	defer s.pending.Begin("signOut", "")()

	err := s.gw.SignOut(ctx)
	s.clear()
	if err != nil {
		return fail(s.log, "sign_out", err)
	}
	return nil
}

// ResetPassword asks the gateway to mail a password reset link
func (s *AuthStore) ResetPassword(ctx context.Context, email string) error {
	defer s.pending.Begin("resetPassword", "")()

	if err := s.gw.ResetPassword(ctx, email); err != nil {
		return fail(s.log, "reset_password", err)
	}
	return nil
}

// UpdatePassword changes the signed-in user's password
func (s *AuthStore) UpdatePassword(ctx context.Context, password string) error {
	if !models.ValidPassword(password) {
		return validation("Password must be at least 8 characters and contain upper and lower case letters, a number and a special character")
	}
	defer s.pending.Begin("updatePassword", "")()

	if _, err := s.gw.UpdateUser(ctx, gateway.UserAttributes{Password: password}); err != nil {
		return fail(s.log, "update_password", err)
	}
	return nil
}

// UpdateProfile re-validates the identity with the gateway, sends the changed
// fields as user metadata, and merges them into the local user.
func (s *AuthStore) UpdateProfile(ctx context.Context, u ProfileUpdate) (*models.User, error) {
	if s.User() == nil {
		return nil, gateway.NewError(gateway.KindAuth, "User not authenticated")
	}
	defer s.pending.Begin("updateProfile", "")()

	if _, err := s.gw.GetUser(ctx); err != nil {
		return nil, fail(s.log, "update_profile", err)
	}

	data := map[string]any{}
	if u.FirstName != nil {
		data["firstName"] = *u.FirstName
	}
	if u.LastName != nil {
		data["lastName"] = *u.LastName
	}
	if u.Avatar != nil {
		data["avatar"] = *u.Avatar
	}
	if len(data) > 0 {
		if _, err := s.gw.UpdateUser(ctx, gateway.UserAttributes{Data: data}); err != nil {
			return nil, fail(s.log, "update_profile", err)
		}
	}

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil, gateway.NewError(gateway.KindAuth, "User not authenticated")
	}
	updated := *s.user
	if u.FirstName != nil {
		updated.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		updated.LastName = *u.LastName
	}
	if u.Avatar != nil {
		avatar := *u.Avatar
		updated.Avatar = &avatar
	}
	updated.UpdatedAt = s.now()
	s.user = &updated
	s.mu.Unlock()
	s.persist()

	out := updated
	return &out, nil
}

// Initialize derives the identity from the gateway's current session. Used
// at startup.
func (s *AuthStore) Initialize(ctx context.Context) error {
	defer s.pending.Begin("initialize", "")()
	return s.fromSession(ctx, "initialize")
}

// RefreshSession re-derives the identity after an external auth change
func (s *AuthStore) RefreshSession(ctx context.Context) error {
	defer s.pending.Begin("refreshSession", "")()
	return s.fromSession(ctx, "refresh_session")
}

func (s *AuthStore) fromSession(ctx context.Context, op string) error {
	sess, err := s.gw.GetSession(ctx)
	if err != nil {
		// an unreachable backend leaves the cached identity in place
		if gateway.KindOf(err) != gateway.KindNetwork {
			s.clear()
		}
		return fail(s.log, op, err)
	}
	if sess == nil || sess.User == nil {
		s.clear()
		return nil
	}
	s.setSession(sess)
	return nil
}

// CheckAuthState asks the gateway who the token belongs to. The token itself
// is left unchanged on success.
func (s *AuthStore) CheckAuthState(ctx context.Context) error {
	defer s.pending.Begin("checkAuthState", "")()

	user, err := s.gw.GetUser(ctx)
	if err != nil {
		s.clear()
		return fail(s.log, "check_auth_state", err)
	}
	if user == nil {
		s.clear()
		return nil
	}
	s.setUser(userFromAuth(user))
	return nil
}
