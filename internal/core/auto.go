package core

import (
	"context"
	"fmt"
	"runtime/debug"

	pwerr "gopwn/internal/errors"
	"gopwn/internal/metrics"
	"gopwn/util"
)

// Startup step names, as reported in errors.StartupFault.
const (
	StepStartAI           = "start_ai"
	StepSetupEvents       = "setup_events"
	StepSetStarting       = "set_starting"
	StepStartMonitorMode  = "start_monitor_mode"
	StepStartEventPolling = "start_event_polling"
	StepInitialEpoch      = "initial_epoch"
)

// AutoMode starts the agent and then runs epochs until ctx is done.
// A startup failure is fatal; a failing epoch is logged and the next
// one starts immediately.
type AutoMode struct {
	Agent   Agent
	Logger  *util.Logger
	Metrics *metrics.Collector
}

func (m *AutoMode) Run(ctx context.Context) error {
	if err := m.startup(ctx); err != nil {
		return err
	}
	return m.loop(ctx)
}

// startup runs the fixed sequence, stopping at the first error.
// Panics are not recovered here.
func (m *AutoMode) startup(ctx context.Context) error {
	a := m.Agent
	steps := []struct {
		name string
		run  func() error
	}{
		{StepStartAI, func() error { return a.StartAI(ctx) }},
		{StepSetupEvents, func() error { return a.SetupEvents(ctx) }},
		{StepSetStarting, func() error { a.SetStarting(); return nil }},
		{StepStartMonitorMode, func() error { return a.StartMonitorMode(ctx) }},
		{StepStartEventPolling, func() error { return a.StartEventPolling(ctx) }},
		// statistics only, not a loop iteration
		{StepInitialEpoch, func() error { return a.NextEpoch(ctx) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return pwerr.Startup(s.name, err)
		}
	}
	a.SetReady()
	return nil
}

func (m *AutoMode) loop(ctx context.Context) error {
	for iteration := uint64(1); ; iteration++ {
		if ctx.Err() != nil {
			return nil
		}
		m.Metrics.IterationStarted()

		fault := guard(iteration, func() error { return m.iterate(ctx) })
		if fault != nil && ctx.Err() == nil {
			m.Metrics.RecordFault(fault.Error())
			if fault.Panicked() {
				m.Logger.Error("main loop exception: %v\n%s", fault, fault.Stack)
			} else {
				m.Logger.Error("main loop exception: %v", fault)
			}
		}
		if m.Logger.Debugging() && m.Metrics != nil {
			m.Logger.Debug("metrics: %s", m.Metrics.JSON())
		}
	}
}

// iterate is one epoch: recon, group, hop through the channels
// interacting with every access point and station, then advance.
func (m *AutoMode) iterate(ctx context.Context) error {
	a := m.Agent

	if err := a.Recon(ctx); err != nil {
		return err
	}
	groups, err := a.AccessPointsByChannel(ctx)
	if err != nil {
		return err
	}
	if err := a.CheckChannels(ctx, groups); err != nil {
		return err
	}

	for i := range groups {
		g := &groups[i]
		if err := a.SetChannel(ctx, g.Channel); err != nil {
			return err
		}
		if !a.IsStale() && a.AnyActivity() {
			m.Logger.Info("%d access points on channel %d", len(g.AccessPoints), g.Channel)
		}
		for j := range g.AccessPoints {
			ap := &g.AccessPoints[j]
			if err := a.Associate(ctx, ap); err != nil {
				return err
			}
			for k := range ap.Clients {
				if err := a.Deauth(ctx, ap, &ap.Clients[k]); err != nil {
					return err
				}
			}
		}
	}

	return a.NextEpoch(ctx)
}

// guard runs one iteration body and turns an error or a panic into an
// EpochFault.  It returns nil on success.
func guard(iteration uint64, body func() error) (fault *pwerr.EpochFault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &pwerr.EpochFault{
				Iteration: iteration,
				Err:       fmt.Errorf("panic: %v", r),
				Stack:     debug.Stack(),
			}
		}
	}()
	if err := body(); err != nil {
		return &pwerr.EpochFault{Iteration: iteration, Err: err}
	}
	return nil
}
