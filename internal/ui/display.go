// Package ui renders the unit's state on a terminal.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"gopwn/internal/session"
)

const ansiClear = "\033[H\033[2J"

// Faces shown for the states the display knows about.
const (
	FaceManual = "(☉_☉ )"
	FaceSleep  = "(⇀‿‿↼)"
	FaceHappy  = "(•‿‿•)"
)

// Display keeps a keyed state and draws it.  On a terminal every
// update redraws in place; otherwise a single status line is written
// when the mode changes.  A disabled display tracks state only.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	tty     bool
	width   int
	started time.Time
	state   map[string]interface{}
}

// New returns a display writing to out.
func New(out io.Writer, name string, enabled bool) *Display {
	d := &Display{
		out:     out,
		enabled: enabled,
		width:   80,
		started: time.Now(),
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		d.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			d.width = w
		}
	}
	d.reset(name)
	return d
}

func (d *Display) reset(name string) {
	d.state = map[string]interface{}{
		"name":    name,
		"face":    FaceSleep,
		"status":  "",
		"mode":    "AUTO",
		"channel": "*",
		"aps":     0,
		"epoch":   0,
		"uptime":  session.Humanize(0),
		"shakes":  0,
		"mood":    "",
	}
}

// Set updates one key and redraws on a terminal.
func (d *Display) Set(key string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state[key] = value
	if d.tty {
		d.state["uptime"] = session.Humanize(time.Since(d.started))
		_ = d.render()
	}
}

// Get returns the current value of key.
func (d *Display) Get(key string) interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state[key]
}

// Clear blanks the screen and resets the state.
func (d *Display) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset(fmt.Sprint(d.state["name"]))
	if !d.enabled {
		return nil
	}
	_, err := io.WriteString(d.out, ansiClear)
	return err
}

// OnManualMode shows the summary of the last session.
func (d *Display) OnManualMode(s *session.Summary) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state["mode"] = "MANU"
	d.state["face"] = FaceManual
	d.state["uptime"] = s.DurationHuman
	d.state["epoch"] = s.Epochs
	d.state["shakes"] = s.Handshakes
	d.state["channel"] = "-"
	d.state["aps"] = 0
	d.state["status"] = fmt.Sprintf("last session: %d epochs, %d handshakes, avg reward %.2f",
		s.Epochs, s.Handshakes, s.AvgReward)
	return d.render()
}

// Render draws the current state.
func (d *Display) Render() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.render()
}

func (d *Display) render() error {
	if !d.enabled {
		return nil
	}
	if !d.tty {
		_, err := fmt.Fprintln(d.out, d.line())
		return err
	}

	var b strings.Builder
	b.WriteString(ansiClear)
	b.WriteString(d.fit(fmt.Sprintf("%v> %v", d.state["name"], d.state["mode"])) + "\n")
	b.WriteString(d.fit(fmt.Sprintf("CH %v  APS %v  EPOCH %v  UP %v  PWND %v",
		d.state["channel"], d.state["aps"], d.state["epoch"], d.state["uptime"], d.state["shakes"])) + "\n\n")
	b.WriteString(d.fit(fmt.Sprintf("  %v  %v", d.state["face"], d.state["status"])) + "\n")
	_, err := io.WriteString(d.out, b.String())
	return err
}

// line is the single-line form used when out is not a terminal.
func (d *Display) line() string {
	return fmt.Sprintf("[%v] ch=%v aps=%v epoch=%v up=%v shakes=%v %v %v",
		d.state["mode"], d.state["channel"], d.state["aps"], d.state["epoch"],
		d.state["uptime"], d.state["shakes"], d.state["face"], d.state["status"])
}

func (d *Display) fit(s string) string {
	r := []rune(s)
	if len(r) <= d.width {
		return s
	}
	return string(r[:d.width])
}

// MarshalJSON exposes the state, e.g. to exec plugins.
func (d *Display) MarshalJSON() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return json.Marshal(d.state)
}
