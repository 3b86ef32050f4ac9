// Package errors provides domain-specific error types for gopwn.
//
// These types carry structured context (startup step, epoch iteration,
// bettercap command, plugin) that helps callers decide how to handle a
// failure and gives better diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotReady       = errors.New("bettercap api is not ready")
	ErrPluginDisabled = errors.New("plugin temporarily disabled")
	ErrNoManifest     = errors.New("plugin manifest has no program or command")
	ErrCircuitOpen    = errors.New("circuit breaker is open")
)

// ── Structured error types ───────────────────────────────────────────

// StartupFault is raised by any step of the auto mode startup sequence,
// including the initial statistics epoch.  It is fatal.
type StartupFault struct {
	Step string // "start_ai", "setup_events", ..., "initial_epoch"
	Err  error
}

func (e *StartupFault) Error() string {
	return fmt.Sprintf("startup %s: %v", e.Step, e.Err)
}

func (e *StartupFault) Unwrap() error { return e.Err }

// EpochFault is a failure contained inside one epoch loop iteration.
type EpochFault struct {
	Iteration uint64 // 1-based loop iteration
	Err       error
	Stack     []byte // set when the fault was a panic
}

func (e *EpochFault) Error() string {
	return fmt.Sprintf("iteration %d: %v", e.Iteration, e.Err)
}

func (e *EpochFault) Unwrap() error { return e.Err }

// Panicked reports whether the fault was recovered from a panic.
func (e *EpochFault) Panicked() bool { return len(e.Stack) > 0 }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // dotted key, e.g. "bettercap.port"
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// APIError is a failed bettercap REST call.
type APIError struct {
	Op     string // "run", "session", "wifi"
	Cmd    string // session command, empty for reads
	Status int    // HTTP status, 0 if the request never completed
	Msg    string // message returned by bettercap
	Err    error  // transport error, if any
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("bettercap ")
	b.WriteString(e.Op)
	if e.Cmd != "" {
		fmt.Fprintf(&b, " %q", e.Cmd)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	switch {
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	case e.Msg != "":
		b.WriteString(": " + e.Msg)
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// PluginError represents a failed plugin hook.
type PluginError struct {
	Plugin string
	Event  string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s on %s: %v", e.Plugin, e.Event, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// ── Constructors ─────────────────────────────────────────────────────

// Startup wraps err as a StartupFault for the named step.  A nil err
// yields nil.
func Startup(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StartupFault{Step: step, Err: err}
}

// WrapAPI creates an APIError for a transport failure.
func WrapAPI(op, cmd string, err error) *APIError {
	return &APIError{Op: op, Cmd: cmd, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsStartup reports whether err is (or wraps) a StartupFault.
func IsStartup(err error) bool {
	var sf *StartupFault
	return errors.As(err, &sf)
}

// IsNotFound reports whether bettercap rejected a command because the
// target station or access point is no longer known to it.
func IsNotFound(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	msg := strings.ToLower(ae.Msg)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "unknown")
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use gopwn/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
