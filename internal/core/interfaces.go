package core

import (
	"context"

	"gopwn/internal/plugin"
	"gopwn/internal/session"
	"gopwn/internal/wifi"
)

//go:generate mockgen -destination=mock_display_test.go -package=core -self_package=gopwn/internal/core gopwn/internal/core Display

// Agent is everything the startup sequence and the epoch loop ask of
// the radio side.  Calls block until done.
type Agent interface {
	StartAI(ctx context.Context) error
	SetupEvents(ctx context.Context) error
	SetStarting()
	StartMonitorMode(ctx context.Context) error
	StartEventPolling(ctx context.Context) error
	NextEpoch(ctx context.Context) error
	SetReady()

	Recon(ctx context.Context) error
	AccessPointsByChannel(ctx context.Context) ([]wifi.ChannelGroup, error)
	CheckChannels(ctx context.Context, groups []wifi.ChannelGroup) error
	SetChannel(ctx context.Context, ch int) error
	IsStale() bool
	AnyActivity() bool
	Associate(ctx context.Context, ap *wifi.AccessPoint) error
	Deauth(ctx context.Context, ap *wifi.AccessPoint, sta *wifi.Station) error
}

// Display is the screen as seen by the clear and manual modes.
type Display interface {
	OnManualMode(s *session.Summary) error
	Clear() error
}

// PluginHost loads plugins and dispatches events to them.
type PluginHost interface {
	LoadFromPath(dir string) error
	On(ctx context.Context, event string, args ...interface{})
	Loaded() []plugin.Meta
}
