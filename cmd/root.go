// Package cmd wires up the CLI flags and dispatches to one of the unit's
// modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"gopwn/config"
	"gopwn/internal/agent"
	"gopwn/internal/bettercap"
	"gopwn/internal/core"
	"gopwn/internal/metrics"
	"gopwn/internal/plugin"
	"gopwn/internal/ui"
	"gopwn/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X gopwn/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout and stderr are swapped out by tests.
var ( //nolint:gochecknoglobals
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Execute parses args, loads the configuration and runs the selected
// mode until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gopwn", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── configuration ────────────────────────────────────────────
	var configPath, userPath string
	fs.StringVarP(&configPath, "config", "C", config.DefaultConfigPath, "Main configuration file")
	fs.StringVarP(&userPath, "user-config", "U", config.DefaultUserConfigPath, "User configuration merged over the main file")

	// ── mode ─────────────────────────────────────────────────────
	var flags core.Flags
	fs.BoolVar(&flags.Manual, "manual", false, "Manual mode: show the last session and wait for connectivity")
	fs.BoolVar(&flags.Clear, "clear", false, "Clear the display and exit")

	// ── output ───────────────────────────────────────────────────
	var debug bool
	fs.BoolVar(&debug, "debug", false, "Enable debug logging")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "gopwn %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v (use --help for usage)", fs.Args())
	}

	// ── configuration ────────────────────────────────────────────
	cfg, src, err := config.Load(configPath, userPath)
	if err != nil {
		return err
	}

	logger := util.NewLogger(debug || cfg.Main.Debug)
	logger.SetOutput(stderr)
	defer logger.Close()

	if src.Fallback {
		logger.Warn("%s not found, using built-in defaults", configPath)
	}
	if src.User != "" {
		logger.Debug("merged user configuration from %s", src.User)
	}
	if err := logger.AddFile(cfg.Main.Log); err != nil {
		logger.Warn("session log disabled: %v", err)
	}

	// ── build components ─────────────────────────────────────────
	collector := metrics.New()
	registry := plugin.NewRegistry(logger)
	deps := core.Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: collector,
		Plugins: registry,
		Connected: func(ctx context.Context) bool {
			return agent.IsConnected(ctx, cfg.Main.ConnectivityAddr)
		},
	}

	build := func() error {
		display := ui.New(stdout, cfg.Main.Name, cfg.UI.Display.Enabled)
		client := bettercap.New(bettercap.Options{
			BaseURL:  cfg.BettercapURL(),
			Username: cfg.Bettercap.Username,
			Password: cfg.Bettercap.Password,
			Timeout:  config.DefaultAPITimeout,
			Logger:   logger,
		})
		deps.Display = display
		deps.Agent = agent.New(agent.Options{
			Config:  cfg,
			API:     client,
			View:    display,
			Plugins: registry,
			Logger:  logger,
			Metrics: collector,
		})

		banner(logger, cfg, registry)
		return nil
	}

	if err := core.Prepare(ctx, registry, config.DefaultPluginPath, cfg.Main.Plugins, build); err != nil {
		return err
	}
	return core.Dispatch(ctx, flags, deps)
}

// ── helpers ──────────────────────────────────────────────────────────

// banner logs the unit's identity and the loaded plugins.  A missing
// or unreadable key only costs the fingerprint.
func banner(logger *util.Logger, cfg *config.Config, registry *plugin.Registry) {
	id, err := agent.LoadIdentity(cfg.Main.Identity, cfg.Main.Name)
	if err != nil {
		logger.Warn("%v", err)
		logger.Info("%s (v%s)", cfg.Main.Name, version)
	} else {
		logger.Info("%s@%s (v%s)", cfg.Main.Name, id.Fingerprint, version)
	}

	for _, m := range registry.Loaded() {
		logger.Debug("plugin '%s' v%s loaded from %s", m.Name, m.Version, m.Origin)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stderr, `gopwn v%s

Drives bettercap through recon epochs, or shows the last session
while waiting for connectivity.

Usage:
  gopwn [options]              Auto mode
  gopwn --manual [options]     Manual mode
  gopwn --clear                Clear the display

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(stderr, `
Examples:
  gopwn -C /etc/gopwn/config.yml           Run with a specific config
  gopwn --manual --debug                   Manual mode with debug logs
  GOPWN_BETTERCAP_HOST=10.0.0.2 gopwn      Remote bettercap
`)
}
