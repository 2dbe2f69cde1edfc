// Package gateway talks to the hosted backend: auth, REST tables, object
// storage and realtime change feeds.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Config holds the connection settings of the hosted backend
type Config struct {
	URL           string
	AnonKey       string
	Timeout       time.Duration
	ResetRedirect string // deep link sent with password reset mails

	BreakerTimeout  time.Duration // how long the breaker stays open
	BreakerFailures uint32        // consecutive network failures before it opens
}

// KV is the durable byte store the client persists its session to
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// SessionKey is the cache key holding the persisted session
const SessionKey = "gateway_session"

// Client is the HTTP adapter for the hosted backend
type Client struct {
	base    *url.URL
	anonKey string
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     logrus.FieldLogger
	kv      KV
	now     func() time.Time

	mu        sync.RWMutex
	session   *Session
	restored  bool
	listeners map[string]AuthListener
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithSessionStore persists the auth session across restarts
func WithSessionStore(kv KV) Option {
	return func(c *Client) { c.kv = kv }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the backend at cfg.URL
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway url %q must be absolute", cfg.URL)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}

	c := &Client{
		base:      base,
		anonKey:   cfg.AnonKey,
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		log:       logrus.StandardLogger(),
		now:       time.Now,
		listeners: make(map[string]AuthListener),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// only transport failures and 5xx count against the backend,
			// a caller giving up on its own context does not
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return KindOf(err) != KindNetwork
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
	return c, nil
}

// request describes one HTTP call to the backend
type request struct {
	method  string
	path    string
	query   url.Values
	body    any       // JSON encoded when set
	raw     io.Reader // sent as-is when set
	headers map[string]string
	noAuth  bool // send the anon key even when a session exists
}

// send performs r through the circuit breaker and returns the response body
func (c *Client) send(ctx context.Context, r request) ([]byte, http.Header, error) {
	c.restoreSession()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, r)
	})
	if err != nil {
		return nil, nil, AsError(err)
	}
	resp := res.(*response)
	return resp.body, resp.header, nil
}

type response struct {
	body   []byte
	header http.Header
}

func (c *Client) roundTrip(ctx context.Context, r request) (*response, error) {
	u := *c.base
	u.Path = c.base.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	switch {
	case r.raw != nil:
		body = r.raw
	case r.body != nil:
		buf, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Authorization", "Bearer "+c.bearer(r.noAuth))
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnf("Event ID: GATEWAY_REQUEST_FAILED, Description: %s %s (request %s): %v", r.method, r.path, requestID, err)
		return nil, AsError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, AsError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := responseError(resp.StatusCode, data)
		c.log.Debugf("Event ID: GATEWAY_REQUEST_REJECTED, Description: %s %s (request %s) -> %d: %s", r.method, r.path, requestID, resp.StatusCode, gerr.Message)
		return nil, gerr
	}
	return &response{body: data, header: resp.Header}, nil
}

// do performs r and decodes a JSON response into out when out is non-nil
func (c *Client) do(ctx context.Context, r request, out any) error {
	data, _, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindUnknown, Message: fmt.Sprintf("decode %s response: %v", r.path, err), Err: err}
	}
	return nil
}

func (c *Client) bearer(anon bool) string {
	if anon {
		return c.anonKey
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil && c.session.AccessToken != "" {
		return c.session.AccessToken
	}
	return c.anonKey
}
