package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"gopwn/config"
	pwerr "gopwn/internal/errors"
	"gopwn/internal/retry"
	"gopwn/util"
)

// Registry holds the loaded plugins in load order.  It is created once
// by the caller and passed to whoever dispatches events.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	index   map[string]int
	log     *util.Logger
	breaker *retry.CircuitBreakerConfig
}

type entry struct {
	plugin Plugin
	cb     *retry.CircuitBreaker
}

// NewRegistry returns an empty registry.  A plugin whose hooks fail
// config.DefaultPluginMaxFailures times in a row is skipped for
// config.DefaultPluginCooldown.
func NewRegistry(log *util.Logger) *Registry {
	if log == nil {
		log = util.Nop()
	}
	return &Registry{
		index: make(map[string]int),
		log:   log,
		breaker: &retry.CircuitBreakerConfig{
			MaxFailures:  config.DefaultPluginMaxFailures,
			ResetTimeout: config.DefaultPluginCooldown,
		},
	}
}

// SetBreaker replaces the per-plugin circuit breaker settings for
// plugins registered afterwards.
func (r *Registry) SetBreaker(cfg *retry.CircuitBreakerConfig) {
	r.mu.Lock()
	r.breaker = cfg
	r.mu.Unlock()
}

// Register adds p.  A plugin with the same name as one already loaded
// replaces it in place, keeping its position.
func (r *Registry) Register(p Plugin) {
	name := p.Meta().Name

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := *r.breaker
	cfg.OnStateChange = func(from, to retry.State) {
		switch to {
		case retry.StateOpen:
			r.log.Warn("plugin %s disabled after repeated failures", name)
		case retry.StateClosed:
			r.log.Info("plugin %s re-enabled", name)
		}
	}
	e := &entry{plugin: p, cb: retry.NewCircuitBreaker(&cfg)}

	if i, ok := r.index[name]; ok {
		r.entries[i] = e
		return
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, e)
}

// LoadFromPath registers an exec plugin for every *.yml or *.yaml
// manifest in dir, in file name order.  A missing dir is not an
// error; a broken or disabled manifest is logged and skipped.
func (r *Registry) LoadFromPath(dir string) error {
	ents, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		r.log.Debug("plugin path %s does not exist", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("plugin path: %w", err)
	}

	for _, de := range ents {
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if de.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		path := filepath.Join(dir, de.Name())

		m, err := LoadManifest(path)
		if err != nil {
			r.log.Warn("skipping plugin: %v", err)
			continue
		}
		if !m.IsEnabled() {
			r.log.Debug("plugin %s is disabled", m.Name)
			continue
		}
		r.Register(NewExecPlugin(m, path, r.log))
	}
	return nil
}

// Loaded returns the metadata of every registered plugin in load order.
func (r *Registry) Loaded() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Meta, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.plugin.Meta()
	}
	return out
}

// On dispatches event to every plugin implementing it, one at a time
// in load order.  Hook errors and panics are logged and never reach
// the caller.
func (r *Registry) On(ctx context.Context, event string, args ...interface{}) {
	ev := Event{ID: ulid.Make(), Name: event, Args: args}
	if ev.Args == nil {
		ev.Args = []interface{}{}
	}

	r.mu.RLock()
	entries := append([]*entry(nil), r.entries...)
	r.mu.RUnlock()

	for _, e := range entries {
		if !e.plugin.Implements(event) {
			continue
		}
		name := e.plugin.Meta().Name

		err := e.cb.Execute(func() error { return call(ctx, e.plugin, ev) })
		switch {
		case err == nil:
		case errors.Is(err, pwerr.ErrCircuitOpen):
			r.log.Debug("plugin %s skipped on %s: %v (%v)", name, event, pwerr.ErrPluginDisabled, err)
		default:
			r.log.Error("%v", &pwerr.PluginError{Plugin: name, Event: event, Err: err})
		}
	}
}

func call(ctx context.Context, p Plugin, ev Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return p.Handle(ctx, ev)
}
