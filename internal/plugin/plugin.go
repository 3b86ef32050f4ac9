// Package plugin loads event hooks and dispatches agent events to
// them.  Plugins are external programs described by YAML manifests;
// anything implementing Plugin can be registered directly.
package plugin

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Meta identifies a loaded plugin.
type Meta struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Origin  string `json:"origin"` // manifest path, or "builtin"
}

// Event is one dispatch.  Every plugin receiving the same dispatch
// sees the same ID.
type Event struct {
	ID   ulid.ULID     `json:"id"`
	Name string        `json:"event"`
	Args []interface{} `json:"args"`
}

// Plugin reacts to events.
type Plugin interface {
	Meta() Meta
	// Implements reports whether the plugin has a hook for event.
	Implements(event string) bool
	Handle(ctx context.Context, ev Event) error
}

// Events dispatched by gopwn.
const (
	EventLoaded            = "loaded"
	EventInternetAvailable = "internet_available"
)
