package errors

import (
	"fmt"
	"io"
	"testing"
)

func TestStartupFault_Format(t *testing.T) {
	err := Startup("start_monitor_mode", fmt.Errorf("no such interface"))
	want := "startup start_monitor_mode: no such interface"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !IsStartup(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsStartup should see through wrapping")
	}
}

func TestStartup_Nil(t *testing.T) {
	if err := Startup("start_ai", nil); err != nil {
		t.Errorf("Startup(nil) = %v, want nil", err)
	}
}

func TestEpochFault(t *testing.T) {
	inner := io.ErrUnexpectedEOF
	err := &EpochFault{Iteration: 7, Err: inner}

	if got, want := err.Error(), "iteration 7: unexpected EOF"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
	if err.Panicked() {
		t.Error("Panicked() = true without a stack")
	}

	err.Stack = []byte("goroutine 1 [running]")
	if !err.Panicked() {
		t.Error("Panicked() = false with a stack")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "bettercap.port",
				Value:   99999,
				Message: "out of range 1-65535",
				Hint:    "use a port between 1 and 65535",
			},
			want: "config: bettercap.port=99999: out of range 1-65535\n  hint: use a port between 1 and 65535",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "main.log",
				Message: "is required",
			},
			want: "config: main.log: is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestAPIError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  APIError
		want string
	}{
		{
			name: "rejected command",
			err:  APIError{Op: "run", Cmd: "wifi.deauth aa:bb", Status: 400, Msg: "station aa:bb not found"},
			want: `bettercap run "wifi.deauth aa:bb" (400): station aa:bb not found`,
		},
		{
			name: "transport failure",
			err:  APIError{Op: "wifi", Err: io.EOF},
			want: "bettercap wifi: EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapAPI(t *testing.T) {
	err := WrapAPI("session", "", io.EOF)
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", fmt.Errorf("not found"), false},
		{"station not found", &APIError{Op: "run", Msg: "station 11:22 not found"}, true},
		{"unknown bssid", fmt.Errorf("assoc: %w", &APIError{Op: "run", Msg: "Unknown BSSID"}), true},
		{"other api failure", &APIError{Op: "run", Msg: "interface down"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPluginError(t *testing.T) {
	err := &PluginError{Plugin: "gps", Event: "loaded", Err: io.EOF}
	if got, want := err.Error(), "plugin gps on loaded: EOF"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestSentinels(t *testing.T) {
	// Verify sentinel errors are distinct.
	sentinels := []error{ErrNotReady, ErrPluginDisabled, ErrNoManifest, ErrCircuitOpen}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
