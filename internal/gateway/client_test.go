package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: map[string][]byte{}} }

func (k *memKV) Get(key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.m[key], nil
}

func (k *memKV) Set(key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = value
	return nil
}

func (k *memKV) Delete(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.m, key)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func newTestClient(t *testing.T, r *mux.Router, cfg Config, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg.URL = srv.URL
	if cfg.AnonKey == "" {
		cfg.AnonKey = "anon"
	}
	base := []Option{WithHTTPClient(srv.Client()), WithLogger(quietLogger())}
	c, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testSession(token string, expiresAt time.Time) Session {
	return Session{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    3600,
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: "refresh-" + token,
		User:         &AuthUser{ID: "u1", Email: "ada@example.com"},
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(Config{URL: "localhost/api"})
	require.Error(t, err)
}

func TestSignInSetsSessionAndAuthorizesRequests(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "password", req.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", req.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon", req.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		if body["password"] != "Secret1!" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, testSession("tok-1", time.Now().Add(time.Hour)))
	}).Methods(http.MethodPost)
	r.HandleFunc("/rest/v1/projects", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
		assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
		assert.Equal(t, "eq.u1", req.URL.Query().Get("owner_id"))
		assert.Equal(t, "created_at.desc", req.URL.Query().Get("order"))
		writeJSON(w, http.StatusOK, []ProjectRow{{ID: "p1", Name: "Launch", OwnerID: "u1"}})
	}).Methods(http.MethodGet)

	kv := newMemKV()
	c, _ := newTestClient(t, r, Config{}, WithSessionStore(kv))

	var events []AuthEvent
	unsubscribe := c.OnAuthStateChange(func(ev AuthEvent, _ *Session) { events = append(events, ev) })
	defer unsubscribe()

	ctx := context.Background()
	_, err := c.SignIn(ctx, "ada@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "Invalid login credentials", err.Error())
	assert.Empty(t, events)

	sess, err := c.SignIn(ctx, "ada@example.com", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.AccessToken)
	assert.Equal(t, []AuthEvent{EventSignedIn}, events)

	stored, _ := kv.Get(SessionKey)
	assert.Contains(t, string(stored), "tok-1")

	rows, err := c.ListProjects(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Launch", rows[0].Name)
}

func TestSignOutClearsSessionWhenBackendFails(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "boom"})
	}).Methods(http.MethodPost)

	kv := newMemKV()
	data, _ := json.Marshal(testSession("tok-1", time.Now().Add(time.Hour)))
	require.NoError(t, kv.Set(SessionKey, data))
	c, _ := newTestClient(t, r, Config{}, WithSessionStore(kv))

	var events []AuthEvent
	c.OnAuthStateChange(func(ev AuthEvent, s *Session) {
		assert.Nil(t, s)
		events = append(events, ev)
	})

	err := c.SignOut(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, []AuthEvent{EventSignedOut}, events)

	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	stored, _ := kv.Get(SessionKey)
	assert.Nil(t, stored)
}

func TestGetSessionRefreshesNearExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := mux.NewRouter()
	r.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "refresh_token", req.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "refresh-tok-1", body["refresh_token"])
		writeJSON(w, http.StatusOK, testSession("tok-2", now.Add(time.Hour)))
	}).Methods(http.MethodPost)

	kv := newMemKV()
	data, _ := json.Marshal(testSession("tok-1", now.Add(30*time.Second)))
	require.NoError(t, kv.Set(SessionKey, data))
	c, _ := newTestClient(t, r, Config{}, WithSessionStore(kv), WithClock(func() time.Time { return now }))

	var events []AuthEvent
	c.OnAuthStateChange(func(ev AuthEvent, _ *Session) { events = append(events, ev) })

	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "tok-2", sess.AccessToken)
	assert.Equal(t, []AuthEvent{EventTokenRefreshed}, events)

	stored, _ := kv.Get(SessionKey)
	assert.Contains(t, string(stored), "tok-2")
}

func TestGetSessionWithoutRefreshTokenSignsOut(t *testing.T) {
	now := time.Now()
	kv := newMemKV()
	expired := testSession("tok-1", now.Add(-time.Minute))
	expired.RefreshToken = ""
	data, _ := json.Marshal(expired)
	require.NoError(t, kv.Set(SessionKey, data))

	c, _ := newTestClient(t, mux.NewRouter(), Config{}, WithSessionStore(kv))
	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := TokenExpiry(token)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)

	s := &Session{AccessToken: token}
	assert.True(t, exp.Equal(s.Expiry()))
}

func TestResponseErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   Kind
		msg    string
	}{
		{http.StatusUnauthorized, `{"msg":"JWT expired"}`, KindAuth, "JWT expired"},
		{http.StatusForbidden, `{"message":"permission denied"}`, KindAuth, "permission denied"},
		{http.StatusNotFound, `{"error":"not found"}`, KindNotFound, "not found"},
		{http.StatusNotAcceptable, `{"message":"JSON object requested, multiple (or no) rows returned"}`, KindNotFound, "JSON object requested, multiple (or no) rows returned"},
		{http.StatusConflict, `{"message":"duplicate key"}`, KindValidation, "duplicate key"},
		{http.StatusUnprocessableEntity, `plain text`, KindValidation, "plain text"},
		{http.StatusBadGateway, ``, KindNetwork, "request failed with status 502"},
		{http.StatusTeapot, `{}`, KindUnknown, "request failed with status 418"},
	}
	for _, tc := range cases {
		err := responseError(tc.status, []byte(tc.body))
		assert.Equal(t, tc.kind, err.Kind, "status %d", tc.status)
		assert.Equal(t, tc.msg, err.Message, "status %d", tc.status)
		assert.Equal(t, tc.status, err.Status)
	}
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))
	assert.Equal(t, KindNetwork, AsError(context.DeadlineExceeded).Kind)
	assert.Equal(t, KindNetwork, AsError(gobreaker.ErrOpenState).Kind)
	assert.Equal(t, KindUnknown, AsError(errors.New("odd")).Kind)

	orig := NewError(KindAuth, "nope")
	assert.Same(t, orig, AsError(orig))
	assert.Equal(t, DefaultMessage, (&Error{}).Error())
}

func TestSingleRowMissIsNotFound(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/rest/v1/tasks", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, acceptSingle, req.Header.Get("Accept"))
		assert.Equal(t, taskDetailColumns, req.URL.Query().Get("select"))
		writeJSON(w, http.StatusNotAcceptable, map[string]string{"message": "JSON object requested, multiple (or no) rows returned"})
	}).Methods(http.MethodGet)

	c, _ := newTestClient(t, r, Config{})
	_, err := c.GetTask(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestBreakerOpensOnNetworkFailuresOnly(t *testing.T) {
	var hits atomic.Int32
	status := atomic.Int32{}
	status.Store(http.StatusNotFound)

	r := mux.NewRouter()
	r.HandleFunc("/rest/v1/projects", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeJSON(w, int(status.Load()), map[string]string{"message": "nope"})
	})

	c, _ := newTestClient(t, r, Config{BreakerFailures: 2, BreakerTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.GetProject(ctx, "p1")
		assert.Equal(t, KindNotFound, KindOf(err))
	}
	assert.EqualValues(t, 3, hits.Load())

	status.Store(http.StatusServiceUnavailable)
	for i := 0; i < 2; i++ {
		_, err := c.GetProject(ctx, "p1")
		assert.Equal(t, KindNetwork, KindOf(err))
	}
	assert.EqualValues(t, 5, hits.Load())

	_, err := c.GetProject(ctx, "p1")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 5, hits.Load(), "open breaker must not reach the backend")
}

func TestBreakerIgnoresCancelledCalls(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/rest/v1/projects", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, ProjectRow{ID: "p1", Name: "Launch"})
	})

	c, _ := newTestClient(t, r, Config{BreakerFailures: 2, BreakerTimeout: time.Minute})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := c.GetProject(cancelled, "p1")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	}

	p, err := c.GetProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Launch", p.Name)
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}

func TestQueryValues(t *testing.T) {
	q := From("*, users(*)").Eq("project_id", "p1").Neq("status", "cancelled").Order("joined_at", true).Limit(5)
	v := q.Values()
	assert.Equal(t, "*, users(*)", v.Get("select"))
	assert.Equal(t, "eq.p1", v.Get("project_id"))
	assert.Equal(t, "neq.cancelled", v.Get("status"))
	assert.Equal(t, "joined_at.asc", v.Get("order"))
	assert.Equal(t, "5", v.Get("limit"))

	// Values hands out a copy
	v.Set("select", "id")
	assert.Equal(t, "*, users(*)", q.Values().Get("select"))

	assert.Empty(t, Where().Values())
}

func TestDeleteRefusesEmptyFilter(t *testing.T) {
	var hits atomic.Int32
	r := mux.NewRouter()
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hits.Add(1) })

	c, _ := newTestClient(t, r, Config{})
	err := c.Delete(context.Background(), "tasks", From("*"))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, hits.Load())
}

func TestUpdateSendsPatchAndDecodesRow(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/rest/v1/tasks", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "eq.t1", req.URL.Query().Get("id"))
		assert.Equal(t, preferReturn, req.Header.Get("Prefer"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		var patch map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&patch))
		assert.Equal(t, "completed", patch["status"])
		assert.EqualValues(t, 100, patch["progress"])
		writeJSON(w, http.StatusOK, TaskRow{ID: "t1", Title: "Ship", Status: "completed", Progress: 100})
	}).Methods(http.MethodPatch)

	c, _ := newTestClient(t, r, Config{})
	row, err := c.UpdateTask(context.Background(), "t1", Patch{"status": "completed", "progress": 100})
	require.NoError(t, err)
	assert.Equal(t, "completed", row.Status)
	assert.Equal(t, 100, row.Progress)
}

func TestResetPasswordSendsRedirect(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/auth/v1/recover", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "taskies://reset-password", req.URL.Query().Get("redirect_to"))
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	c, _ := newTestClient(t, r, Config{ResetRedirect: "taskies://reset-password"})
	require.NoError(t, c.ResetPassword(context.Background(), "ada@example.com"))
}
