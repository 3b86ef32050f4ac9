package core

import (
	"context"
	"time"

	"gopwn/config"
	"gopwn/internal/plugin"
	"gopwn/internal/session"
	"gopwn/util"
)

// ManualMode shows the summary of the last session and tells plugins
// whenever the internet is reachable, so they can upload what was
// captured.  Errors from the display end the mode.
type ManualMode struct {
	Display     Display
	Plugins     PluginHost
	Config      *config.Config
	Interval    time.Duration
	Connected   func(ctx context.Context) bool
	ReadSummary func(path string) (*session.Summary, error)
	Logger      *util.Logger
}

func (m *ManualMode) Run(ctx context.Context) error {
	summary, err := m.ReadSummary(m.Config.Main.Log)
	if err != nil {
		return err
	}
	m.Logger.Info("%s", summary.Digest())

	t := time.NewTimer(m.Interval)
	defer t.Stop()

	for {
		if err := m.Display.OnManualMode(summary); err != nil {
			return err
		}

		t.Reset(m.Interval)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		if m.Connected(ctx) {
			m.Plugins.On(ctx, plugin.EventInternetAvailable, m.Display, m.Config, summary)
		}
	}
}
