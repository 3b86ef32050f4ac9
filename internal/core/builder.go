package core

import (
	"context"
	"fmt"
	"time"

	"gopwn/config"
	"gopwn/internal/metrics"
	"gopwn/internal/plugin"
	"gopwn/internal/session"
	"gopwn/util"
)

// Flags are the mode switches from the command line.
type Flags struct {
	Clear  bool
	Manual bool
}

// Deps are the collaborators a mode may need.  Only the ones the
// selected mode uses have to be set.
type Deps struct {
	Config  *config.Config
	Logger  *util.Logger
	Metrics *metrics.Collector
	Plugins PluginHost
	Display Display
	Agent   Agent

	// Connected is the manual mode connectivity predicate.
	Connected func(ctx context.Context) bool
	// Interval overrides config.DefaultManualInterval.
	Interval time.Duration
	// ReadSummary overrides session.Parse.
	ReadSummary func(path string) (*session.Summary, error)
}

// Dispatch selects the mode once, announces it, and runs it.
func Dispatch(ctx context.Context, flags Flags, deps Deps) error {
	kind := Select(flags.Clear, flags.Manual)
	logger(deps).Info("%s", kind.announcement())

	mode, err := Build(kind, deps)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// Build constructs the Mode for kind.
func Build(kind Kind, deps Deps) (Mode, error) {
	switch kind {
	case KindClear:
		return buildClear(deps)
	case KindManual:
		return buildManual(deps)
	default:
		return buildAuto(deps)
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildClear(deps Deps) (Mode, error) {
	if deps.Display == nil {
		return nil, fmt.Errorf("clear mode: no display")
	}
	return &ClearMode{Display: deps.Display}, nil
}

func buildManual(deps Deps) (Mode, error) {
	if deps.Display == nil || deps.Plugins == nil || deps.Config == nil {
		return nil, fmt.Errorf("manual mode: display, plugins and config are required")
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = config.DefaultManualInterval
	}
	connected := deps.Connected
	if connected == nil {
		connected = func(context.Context) bool { return false }
	}
	read := deps.ReadSummary
	if read == nil {
		read = session.Parse
	}
	return &ManualMode{
		Display:     deps.Display,
		Plugins:     deps.Plugins,
		Config:      deps.Config,
		Interval:    interval,
		Connected:   connected,
		ReadSummary: read,
		Logger:      logger(deps),
	}, nil
}

func buildAuto(deps Deps) (Mode, error) {
	if deps.Agent == nil {
		return nil, fmt.Errorf("auto mode: no agent")
	}
	return &AutoMode{
		Agent:   deps.Agent,
		Logger:  logger(deps),
		Metrics: deps.Metrics,
	}, nil
}

func logger(deps Deps) *util.Logger {
	if deps.Logger == nil {
		return util.Nop()
	}
	return deps.Logger
}

// ── plugin lifecycle ─────────────────────────────────────────────────

// Prepare loads plugins from defaultPath, then from extraPath when it
// is set and not blank, fires "loaded" exactly once, and only then
// calls build so the display and agent are constructed after every
// plugin has had its loaded hook.
func Prepare(ctx context.Context, host PluginHost, defaultPath string, extraPath *string, build func() error) error {
	if err := host.LoadFromPath(defaultPath); err != nil {
		return err
	}
	if extraPath != nil && *extraPath != "" {
		if err := host.LoadFromPath(*extraPath); err != nil {
			return err
		}
	}
	host.On(ctx, plugin.EventLoaded)
	return build()
}
