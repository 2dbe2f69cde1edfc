// Package app builds the application context: the local cache, the gateway
// client and the three stores, wired once at startup and passed explicitly to
// whatever needs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tgienger/taskies/internal/config"
	"github.com/tgienger/taskies/internal/db"
	"github.com/tgienger/taskies/internal/filecache"
	"github.com/tgienger/taskies/internal/gateway"
	"github.com/tgienger/taskies/internal/models"
	"github.com/tgienger/taskies/internal/store"
)

// Cache is a Local Persistent Cache that can be closed
type Cache interface {
	store.Cache
	Close() error
}

// LastProjectKey remembers the project the UI showed last
const LastProjectKey = "last_project_id"

// App is the application context
type App struct {
	Config   config.Config
	Log      logrus.FieldLogger
	Cache    Cache
	Gateway  *gateway.Client
	Auth     *store.AuthStore
	Projects *store.ProjectStore
	Tasks    *store.TaskStore

	now func() time.Time

	mu    sync.Mutex
	watch *gateway.Subscription
}

// Option configures New
type Option func(*options)

type options struct {
	log       logrus.FieldLogger
	cache     Cache
	now       func() time.Time
	gatewayOp []gateway.Option
}

// WithLogger sets the logger handed to every component
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithCache uses c instead of opening the configured backend
func WithCache(c Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithClock overrides time.Now everywhere
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithGatewayOptions passes extra options to the gateway client
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *options) { o.gatewayOp = append(o.gatewayOp, opts...) }
}

// New opens the cache and builds the gateway client and stores. Stores
// restore their persisted slices; nothing talks to the network yet.
func New(cfg config.Config, opts ...Option) (*App, error) {
	o := options{log: logrus.StandardLogger(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	cache := o.cache
	if cache == nil {
		var err error
		cache, err = OpenCache(cfg)
		if err != nil {
			return nil, err
		}
	}

	gwOpts := append([]gateway.Option{
		gateway.WithLogger(o.log),
		gateway.WithSessionStore(cache),
		gateway.WithClock(o.now),
	}, o.gatewayOp...)
	gw, err := gateway.New(gateway.Config{
		URL:             cfg.GatewayURL,
		AnonKey:         cfg.AnonKey,
		Timeout:         time.Duration(cfg.Timeout),
		ResetRedirect:   cfg.ResetRedirect,
		BreakerTimeout:  time.Duration(cfg.BreakerTimeout),
		BreakerFailures: cfg.BreakerFailures,
	}, gwOpts...)
	if err != nil {
		cache.Close()
		return nil, err
	}

	storeOpts := []store.Option{store.WithLogger(o.log), store.WithClock(o.now)}
	a := &App{
		Config:   cfg,
		Log:      o.log,
		Cache:    cache,
		Gateway:  gw,
		Auth:     store.NewAuthStore(gw, cache, storeOpts...),
		Projects: store.NewProjectStore(gw, cache, storeOpts...),
		Tasks:    store.NewTaskStore(gw, cache, storeOpts...),
		now:      o.now,
	}
	return a, nil
}

// OpenCache opens the cache backend named by cfg
func OpenCache(cfg config.Config) (Cache, error) {
	switch cfg.CacheBackend {
	case config.BackendFile:
		dir := cfg.CachePath
		if dir == "" {
			base, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("locate cache directory: %w", err)
			}
			dir = filepath.Join(base, "taskies")
		}
		return filecache.New(dir)
	case config.BackendSQLite, "":
		d, err := db.New(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open cache database: %w", err)
		}
		return d, nil
	}
	return nil, config.ErrCacheBackend
}

// Start derives the signed-in user from the gateway session
func (a *App) Start(ctx context.Context) error {
	return a.Auth.Initialize(ctx)
}

// SignOut ends the session and drops the cached projects and tasks of the
// previous user. The sign-out error, if any, is returned after cleanup.
func (a *App) SignOut(ctx context.Context) error {
	a.Unwatch()
	err := a.Auth.SignOut(ctx)
	a.Projects.Clear()
	a.Tasks.Clear()
	if derr := a.Cache.Delete(LastProjectKey); derr != nil {
		a.Log.Warnf("Event ID: CACHE_WRITE_FAILED, Description: key %s: %v", LastProjectKey, derr)
	}
	return err
}

// Stats summarizes the cached projects and tasks
func (a *App) Stats() models.DashboardStats {
	return a.StatsFor(a.Tasks.Tasks())
}

// StatsFor summarizes the cached projects together with tasks
func (a *App) StatsFor(tasks []models.Task) models.DashboardStats {
	return store.ComputeStats(a.Projects.Projects(), tasks, a.now())
}

// WatchProject follows remote changes to projectID's tasks and comments and
// splices them into the stores. A previous watch is stopped first.
func (a *App) WatchProject(ctx context.Context, projectID string) error {
	a.Unwatch()

	sub, err := a.Gateway.Subscribe(ctx, gateway.ProjectChannel(projectID), a.applyChange)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.watch = sub
	a.mu.Unlock()
	return nil
}

func (a *App) applyChange(ch gateway.Change) {
	err := errors.Join(a.Projects.ApplyChange(ch), a.Tasks.ApplyChange(ch))
	if err != nil {
		a.Log.Warnf("Event ID: REALTIME_CHANGE_DROPPED, Description: %s on %s: %v", ch.Type, ch.Table, err)
	}
}

// Unwatch stops the current project watch, if any
func (a *App) Unwatch() {
	a.mu.Lock()
	sub := a.watch
	a.watch = nil
	a.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// LastProjectID returns the project the UI showed last, "" when unknown
func (a *App) LastProjectID() string {
	v, err := a.Cache.Get(LastProjectKey)
	if err != nil {
		a.Log.Warnf("Event ID: CACHE_READ_FAILED, Description: key %s: %v", LastProjectKey, err)
		return ""
	}
	return string(v)
}

// SetLastProjectID remembers id for the next start
func (a *App) SetLastProjectID(id string) {
	if err := a.Cache.Set(LastProjectKey, []byte(id)); err != nil {
		a.Log.Warnf("Event ID: CACHE_WRITE_FAILED, Description: key %s: %v", LastProjectKey, err)
	}
}

// Close stops the watch and the auth listener and closes the cache
func (a *App) Close() error {
	a.Unwatch()
	a.Auth.Close()
	return a.Cache.Close()
}
