// Package store holds the client-side state: the auth, project and task
// stores, the read-only queries derived from them, and the write-through
// persistence of their slices to the local cache.
//
// Stores never hold their lock across a gateway call. Gateway auth events are
// delivered synchronously and may re-enter a store.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tgienger/taskies/internal/gateway"
)

// Cache is the durable key/value byte store each store persists its slice to
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Cache keys of the persisted slices
const (
	AuthKey     = "auth_token"
	ProjectsKey = "offline_data"
	TasksKey    = "draft_tasks"
)

// sliceVersion is bumped when a persisted slice changes shape. Older slices
// are ignored on load.
const sliceVersion = 1

type envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

// Option configures a store
type Option func(*options)

type options struct {
	log logrus.FieldLogger
	now func() time.Time
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{log: logrus.StandardLogger(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// save writes state to the cache under key. Failures are logged; the
// in-memory state stays authoritative.
func save(cache Cache, log logrus.FieldLogger, key string, state any) {
	if cache == nil {
		return
	}
	raw, err := json.Marshal(state)
	if err == nil {
		var data []byte
		data, err = json.Marshal(envelope{State: raw, Version: sliceVersion})
		if err == nil {
			err = cache.Set(key, data)
		}
	}
	if err != nil {
		log.Warnf("Event ID: CACHE_WRITE_FAILED, Description: key %s: %v", key, err)
	}
}

// load reads the slice stored under key into out. It reports false when
// nothing usable is stored.
func load(cache Cache, log logrus.FieldLogger, key string, out any) bool {
	if cache == nil {
		return false
	}
	data, err := cache.Get(key)
	if err != nil {
		log.Warnf("Event ID: CACHE_READ_FAILED, Description: key %s: %v", key, err)
		return false
	}
	if len(data) == 0 {
		return false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Version != sliceVersion {
		log.Warnf("Event ID: CACHE_SLICE_DISCARDED, Description: key %s has an unreadable or outdated slice", key)
		return false
	}
	if err := json.Unmarshal(env.State, out); err != nil {
		log.Warnf("Event ID: CACHE_SLICE_DISCARDED, Description: key %s: %v", key, err)
		return false
	}
	return true
}

// fail converts err into a gateway error and logs it against op
func fail(log logrus.FieldLogger, op string, err error) *gateway.Error {
	gerr := gateway.AsError(err)
	log.WithField("kind", gerr.Kind.String()).
		Warnf("Event ID: %s_FAILED, Description: %s", strings.ToUpper(op), gerr.Error())
	return gerr
}

// Pending tracks in-flight operations keyed by operation and entity id, so
// overlapping actions do not clear each other's loading state.
type Pending struct {
	mu  sync.Mutex
	ops map[string]int
}

func pendingKey(op, id string) string {
	if id == "" {
		return op
	}
	return op + ":" + id
}

// Begin marks op on id as in flight and returns the func that ends it
func (p *Pending) Begin(op, id string) (done func()) {
	key := pendingKey(op, id)
	p.mu.Lock()
	if p.ops == nil {
		p.ops = make(map[string]int)
	}
	p.ops[key]++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.ops[key]--; p.ops[key] <= 0 {
				delete(p.ops, key)
			}
		})
	}
}

// IsPending reports whether op on id is in flight
func (p *Pending) IsPending(op, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ops[pendingKey(op, id)] > 0
}

// Any reports whether any operation is in flight
func (p *Pending) Any() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ops) > 0
}

// Keys lists the in-flight "op:id" keys in order
func (p *Pending) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.ops))
	for k := range p.ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validation(format string, args ...any) *gateway.Error {
	return gateway.NewError(gateway.KindValidation, fmt.Sprintf(format, args...))
}
