package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"gopwn/internal/plugin"
	"gopwn/internal/wifi"
	"gopwn/util"
)

// fakeAgent records every call in order.  hook, when set, runs for
// each call and may fail it (or panic).  recons holds the groups
// returned per recon; the last entry repeats.
type fakeAgent struct {
	mu       sync.Mutex
	calls    []string
	hook     func(call string) error
	recons   [][]wifi.ChannelGroup
	checked  [][]wifi.ChannelGroup
	epochs   int
	stale    bool
	activity bool
}

func (f *fakeAgent) record(format string, args ...interface{}) error {
	call := fmt.Sprintf(format, args...)
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		return hook(call)
	}
	return nil
}

func (f *fakeAgent) StartAI(context.Context) error           { return f.record("StartAI") }
func (f *fakeAgent) SetupEvents(context.Context) error       { return f.record("SetupEvents") }
func (f *fakeAgent) SetStarting()                            { _ = f.record("SetStarting") }
func (f *fakeAgent) StartMonitorMode(context.Context) error  { return f.record("StartMonitorMode") }
func (f *fakeAgent) StartEventPolling(context.Context) error { return f.record("StartEventPolling") }
func (f *fakeAgent) SetReady()                               { _ = f.record("SetReady") }
func (f *fakeAgent) Recon(context.Context) error             { return f.record("Recon") }
func (f *fakeAgent) IsStale() bool                           { return f.stale }
func (f *fakeAgent) AnyActivity() bool                       { return f.activity }

func (f *fakeAgent) NextEpoch(context.Context) error {
	if err := f.record("NextEpoch"); err != nil {
		return err
	}
	f.mu.Lock()
	f.epochs++
	f.mu.Unlock()
	return nil
}

func (f *fakeAgent) AccessPointsByChannel(context.Context) ([]wifi.ChannelGroup, error) {
	if err := f.record("AccessPointsByChannel"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recons) == 0 {
		return nil, nil
	}
	g := f.recons[0]
	if len(f.recons) > 1 {
		f.recons = f.recons[1:]
	}
	return g, nil
}

func (f *fakeAgent) CheckChannels(_ context.Context, groups []wifi.ChannelGroup) error {
	f.mu.Lock()
	f.checked = append(f.checked, groups)
	f.mu.Unlock()
	return f.record("CheckChannels %d", len(groups))
}

func (f *fakeAgent) SetChannel(_ context.Context, ch int) error {
	return f.record("SetChannel %d", ch)
}

func (f *fakeAgent) Associate(_ context.Context, ap *wifi.AccessPoint) error {
	return f.record("Associate %s", ap.MAC)
}

func (f *fakeAgent) Deauth(_ context.Context, ap *wifi.AccessPoint, sta *wifi.Station) error {
	return f.record("Deauth %s %s", ap.MAC, sta.MAC)
}

func (f *fakeAgent) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAgent) Epochs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epochs
}

// count returns how many recorded calls start with prefix.
func (f *fakeAgent) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// fakeHost is an in-memory PluginHost.  log is shared with other
// fakes to check relative ordering.
type fakeHost struct {
	mu     sync.Mutex
	log    *[]string
	events []dispatched
	loaded []plugin.Meta
	fail   map[string]error
}

type dispatched struct {
	name string
	args []interface{}
}

func newFakeHost(log *[]string) *fakeHost {
	if log == nil {
		log = &[]string{}
	}
	return &fakeHost{log: log, fail: map[string]error{}}
}

func (h *fakeHost) LoadFromPath(dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.log = append(*h.log, "load "+dir)
	h.loaded = append(h.loaded, plugin.Meta{Name: dir, Version: "1.0", Origin: dir})
	return h.fail[dir]
}

func (h *fakeHost) On(_ context.Context, event string, args ...interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.log = append(*h.log, "on "+event)
	h.events = append(h.events, dispatched{name: event, args: args})
}

func (h *fakeHost) Loaded() []plugin.Meta {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]plugin.Meta(nil), h.loaded...)
}

func (h *fakeHost) dispatched(event string) []dispatched {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []dispatched
	for _, e := range h.events {
		if e.name == event {
			out = append(out, e)
		}
	}
	return out
}

// safeBuffer is a bytes.Buffer safe for the logger and the test to
// share.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger(debug bool) (*util.Logger, *safeBuffer) {
	buf := &safeBuffer{}
	l := util.NewLogger(debug)
	l.SetOutput(buf)
	l.SetTimestamps(false)
	return l, buf
}

func ap(mac string, ch int, clients ...string) wifi.AccessPoint {
	a := wifi.AccessPoint{MAC: mac, Channel: ch}
	for _, c := range clients {
		a.Clients = append(a.Clients, wifi.Station{MAC: c})
	}
	return a
}
