package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"gopwn/config"
	"gopwn/util"
)

// ExecPlugin runs an external program for every event it hooks.  The
// event is written to the child's stdin as JSON:
//
//	{"id":"01J...","event":"handshake","args":[...]}
//
// and its name is also in GOPWN_EVENT.  Output is logged at debug
// level; a nonzero exit is a hook failure.
type ExecPlugin struct {
	Manifest *Manifest
	Origin   string
	Logger   *util.Logger

	hooks map[string]bool
}

// NewExecPlugin wraps a loaded manifest.
func NewExecPlugin(m *Manifest, origin string, log *util.Logger) *ExecPlugin {
	p := &ExecPlugin{Manifest: m, Origin: origin, Logger: log}
	if len(m.Hooks) > 0 {
		p.hooks = make(map[string]bool, len(m.Hooks))
		for _, h := range m.Hooks {
			p.hooks[h] = true
		}
	}
	if p.Logger == nil {
		p.Logger = util.Nop()
	}
	return p
}

func (p *ExecPlugin) Meta() Meta {
	return Meta{Name: p.Manifest.Name, Version: p.Manifest.Version, Origin: p.Origin}
}

func (p *ExecPlugin) Implements(event string) bool {
	return p.hooks == nil || p.hooks[event]
}

// Handle starts the child process with the event on stdin and waits
// for it, bounded by the manifest timeout.
func (p *ExecPlugin) Handle(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	timeout := p.Manifest.Timeout
	if timeout <= 0 {
		timeout = config.DefaultPluginTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	switch {
	case p.Manifest.Command != "":
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(ctx, "cmd.exe", "/C", p.Manifest.Command)
		} else {
			cmd = exec.CommandContext(ctx, "/bin/sh", "-c", p.Manifest.Command)
		}
	case p.Manifest.Program != "":
		cmd = exec.CommandContext(ctx, p.Manifest.Program)
	default:
		return fmt.Errorf("no program or command for plugin %s", p.Manifest.Name)
	}

	var out bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Env = append(os.Environ(),
		"GOPWN_EVENT="+ev.Name,
		"GOPWN_EVENT_ID="+ev.ID.String(),
		"GOPWN_PLUGIN="+p.Manifest.Name,
	)
	cmd.Env = append(cmd.Env, p.Manifest.Env...)
	cmd.WaitDelay = time.Second

	p.Logger.Debug("plugin %s: exec %s", p.Manifest.Name, cmd.String())

	err = cmd.Run()
	if s := strings.TrimSpace(out.String()); s != "" {
		p.Logger.Debug("plugin %s: %s", p.Manifest.Name, s)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("exec %q: timed out after %v", cmd.Path, timeout)
		}
		return fmt.Errorf("exec %q: %w", cmd.Path, err)
	}
	return nil
}
