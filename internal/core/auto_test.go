package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pwerr "gopwn/internal/errors"
	"gopwn/internal/metrics"
	"gopwn/internal/wifi"
)

var startupCalls = []string{
	"StartAI", "SetupEvents", "SetStarting", "StartMonitorMode", "StartEventPolling", "NextEpoch", "SetReady",
}

type loopRun struct {
	err     error
	log     *safeBuffer
	metrics *metrics.Collector
}

// runAuto runs AutoMode for the given number of loop iterations.  hook
// sees every agent call together with the 1-based iteration it belongs
// to (0 during startup).
func runAuto(t *testing.T, a *fakeAgent, iterations int, hook func(call string, iteration int) error) loopRun {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	iteration := 0
	a.hook = func(call string) error {
		if call == "Recon" {
			iteration++
			if iteration > iterations {
				cancel()
				return context.Canceled
			}
		}
		if hook != nil {
			return hook(call, iteration)
		}
		return nil
	}

	log, buf := testLogger(false)
	m := metrics.New()
	mode := &AutoMode{Agent: a, Logger: log, Metrics: m}
	return loopRun{err: mode.Run(ctx), log: buf, metrics: m}
}

// loopCalls returns the calls made after startup.
func loopCalls(a *fakeAgent) []string {
	return a.Calls()[len(startupCalls):]
}

// ── startup ──────────────────────────────────────────────────────────

func TestAutoMode_StartupOrder(t *testing.T) {
	a := &fakeAgent{}
	run := runAuto(t, a, 1, nil)

	require.NoError(t, run.err)
	assert.Equal(t, startupCalls, a.Calls()[:len(startupCalls)])
	assert.Equal(t, "Recon", a.Calls()[len(startupCalls)], "loop starts after SetReady")
}

func TestAutoMode_StartupFault(t *testing.T) {
	tests := []struct {
		call string
		step string
	}{
		{"StartAI", StepStartAI},
		{"SetupEvents", StepSetupEvents},
		{"StartMonitorMode", StepStartMonitorMode},
		{"StartEventPolling", StepStartEventPolling},
		{"NextEpoch", StepInitialEpoch},
	}
	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			a := &fakeAgent{}
			boom := errors.New("boom")
			run := runAuto(t, a, 5, func(call string, _ int) error {
				if call == tt.call {
					return boom
				}
				return nil
			})

			require.Error(t, run.err)
			var sf *pwerr.StartupFault
			require.ErrorAs(t, run.err, &sf)
			assert.Equal(t, tt.step, sf.Step)
			assert.ErrorIs(t, run.err, boom)

			calls := a.Calls()
			assert.Equal(t, tt.call, calls[len(calls)-1], "nothing runs after the failing step")
			assert.Equal(t, 0, a.count("Recon"), "the loop is never entered")
			assert.Equal(t, 0, a.count("SetReady"))
		})
	}
}

func TestAutoMode_StartupPanicIsNotRecovered(t *testing.T) {
	a := &fakeAgent{}
	assert.Panics(t, func() {
		runAuto(t, a, 1, func(call string, _ int) error {
			if call == "StartMonitorMode" {
				panic("no radio")
			}
			return nil
		})
	})
	assert.Equal(t, 0, a.count("StartEventPolling"))
}

// ── loop ─────────────────────────────────────────────────────────────

func TestAutoMode_IterationOrder(t *testing.T) {
	a := &fakeAgent{recons: [][]wifi.ChannelGroup{{
		{Channel: 6, AccessPoints: []wifi.AccessPoint{ap("a1", 6, "s1", "s2"), ap("a2", 6)}},
		{Channel: 1, AccessPoints: []wifi.AccessPoint{ap("a3", 1, "s3")}},
	}}}
	run := runAuto(t, a, 1, nil)
	require.NoError(t, run.err)

	want := []string{
		"Recon", "AccessPointsByChannel", "CheckChannels 2",
		"SetChannel 6", "Associate a1", "Deauth a1 s1", "Deauth a1 s2", "Associate a2",
		"SetChannel 1", "Associate a3", "Deauth a3 s3",
		"NextEpoch",
		"Recon", // cancelled here
	}
	assert.Equal(t, want, loopCalls(a))
}

func TestAutoMode_EpochAdvancesOnlyOnSuccess(t *testing.T) {
	a := &fakeAgent{recons: [][]wifi.ChannelGroup{{
		{Channel: 6, AccessPoints: []wifi.AccessPoint{ap("a1", 6, "s1")}},
	}}}
	run := runAuto(t, a, 4, func(call string, iteration int) error {
		if iteration == 2 && call == "Deauth a1 s1" {
			return errors.New("interface went down")
		}
		if iteration == 3 && call == "Recon" {
			return errors.New("api timeout")
		}
		return nil
	})

	require.NoError(t, run.err)
	// initial statistics + iterations 1 and 4
	assert.Equal(t, 3, a.Epochs())
	assert.Equal(t, int64(2), run.metrics.FaultCount())
	assert.Equal(t, int64(5), run.metrics.Iterations())

	out := run.log.String()
	assert.Contains(t, out, "[ERR] main loop exception: iteration 2: interface went down")
	assert.Contains(t, out, "[ERR] main loop exception: iteration 3: api timeout")
}

func TestAutoMode_FaultTruncatesIteration(t *testing.T) {
	a := &fakeAgent{recons: [][]wifi.ChannelGroup{{
		{Channel: 6, AccessPoints: []wifi.AccessPoint{ap("a1", 6), ap("a2", 6, "s2"), ap("a3", 6)}},
		{Channel: 1, AccessPoints: []wifi.AccessPoint{ap("a4", 1)}},
	}}}
	run := runAuto(t, a, 2, func(call string, iteration int) error {
		if iteration == 1 && call == "Associate a2" {
			return errors.New("rejected")
		}
		return nil
	})
	require.NoError(t, run.err)

	want := []string{
		"Recon", "AccessPointsByChannel", "CheckChannels 2",
		"SetChannel 6", "Associate a1", "Associate a2",
		// iteration 2 starts fresh
		"Recon", "AccessPointsByChannel", "CheckChannels 2",
		"SetChannel 6", "Associate a1", "Associate a2", "Deauth a2 s2", "Associate a3",
		"SetChannel 1", "Associate a4",
		"NextEpoch",
		"Recon",
	}
	assert.Equal(t, want, loopCalls(a))
}

func TestAutoMode_PanicIsContained(t *testing.T) {
	a := &fakeAgent{recons: [][]wifi.ChannelGroup{{
		{Channel: 11, AccessPoints: []wifi.AccessPoint{ap("a1", 11)}},
	}}}
	run := runAuto(t, a, 2, func(call string, iteration int) error {
		if iteration == 1 && call == "SetChannel 11" {
			panic("index out of range")
		}
		return nil
	})

	require.NoError(t, run.err)
	assert.Equal(t, 2, a.Epochs(), "initial statistics + iteration 2")
	out := run.log.String()
	assert.Contains(t, out, "main loop exception: iteration 1: panic: index out of range")
	assert.Contains(t, out, "goroutine ")
	assert.Equal(t, int64(1), run.metrics.FaultCount())
}

func TestAutoMode_GroupsAreNotRefetched(t *testing.T) {
	groups := []wifi.ChannelGroup{
		{Channel: 1, AccessPoints: []wifi.AccessPoint{ap("a1", 1)}},
		{Channel: 6, AccessPoints: []wifi.AccessPoint{ap("a2", 6)}},
	}
	a := &fakeAgent{recons: [][]wifi.ChannelGroup{groups}}
	run := runAuto(t, a, 3, nil)
	require.NoError(t, run.err)

	assert.Equal(t, 3, a.count("AccessPointsByChannel"), "exactly one fetch per iteration")
	require.Len(t, a.checked, 3)
	assert.Equal(t, groups, a.checked[0])

	// order is the grouping order, not re-sorted by channel or size
	var hops []string
	for _, c := range loopCalls(a) {
		if strings.HasPrefix(c, "SetChannel") {
			hops = append(hops, c)
		}
	}
	assert.Equal(t, []string{"SetChannel 1", "SetChannel 6", "SetChannel 1", "SetChannel 6", "SetChannel 1", "SetChannel 6"}, hops)
}

func TestAutoMode_NoAccessPoints(t *testing.T) {
	a := &fakeAgent{}
	run := runAuto(t, a, 1, nil)
	require.NoError(t, run.err)

	assert.Equal(t, []string{"Recon", "AccessPointsByChannel", "CheckChannels 0", "NextEpoch", "Recon"}, loopCalls(a))
	require.Len(t, a.checked, 1)
	assert.Empty(t, a.checked[0])
	assert.Equal(t, 2, a.Epochs())
}

func TestAutoMode_ChannelLog(t *testing.T) {
	groups := [][]wifi.ChannelGroup{{
		{Channel: 6, AccessPoints: []wifi.AccessPoint{ap("a1", 6), ap("a2", 6)}},
	}}
	tests := []struct {
		name     string
		stale    bool
		activity bool
		want     bool
	}{
		{"active", false, true, true},
		{"stale", true, true, false},
		{"idle", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAgent{recons: groups, stale: tt.stale, activity: tt.activity}
			run := runAuto(t, a, 1, nil)
			require.NoError(t, run.err)
			assert.Equal(t, tt.want, strings.Contains(run.log.String(), "2 access points on channel 6"))
		})
	}
}

// ── guard ────────────────────────────────────────────────────────────

func TestGuard(t *testing.T) {
	assert.Nil(t, guard(1, func() error { return nil }))

	f := guard(2, func() error { return fmt.Errorf("bad") })
	require.NotNil(t, f)
	assert.Equal(t, uint64(2), f.Iteration)
	assert.False(t, f.Panicked())

	f = guard(3, func() error { panic(errors.New("worse")) })
	require.NotNil(t, f)
	assert.True(t, f.Panicked())
	assert.EqualError(t, f, "iteration 3: panic: worse")
}
