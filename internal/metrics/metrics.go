// Package metrics provides lightweight, lock-free counters for tracking
// the runtime statistics of the epoch loop.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one process lifetime.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	iterations   atomic.Int64
	epochs       atomic.Int64
	faults       atomic.Int64
	associations atomic.Int64
	deauths      atomic.Int64
	hops         atomic.Int64
	handshakes   atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastEpoch    time.Time
	lastFault    time.Time
	lastFaultMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Loop metrics ─────────────────────────────────────────────────────

// IterationStarted counts one epoch loop iteration, faulted or not.
func (c *Collector) IterationStarted() {
	if c == nil {
		return
	}
	c.iterations.Add(1)
}

// Iterations returns the number of loop iterations started.
func (c *Collector) Iterations() int64 {
	if c == nil {
		return 0
	}
	return c.iterations.Load()
}

// EpochCompleted counts an iteration that reached the epoch advance.
func (c *Collector) EpochCompleted() {
	if c == nil {
		return
	}
	c.epochs.Add(1)
	c.mu.Lock()
	c.lastEpoch = time.Now()
	c.mu.Unlock()
}

// Epochs returns the number of completed epochs.
func (c *Collector) Epochs() int64 {
	if c == nil {
		return 0
	}
	return c.epochs.Load()
}

// ── Interaction metrics ──────────────────────────────────────────────

// AssociationAttempted records one association attempt.
func (c *Collector) AssociationAttempted() {
	if c == nil {
		return
	}
	c.associations.Add(1)
}

// Associations returns the number of association attempts.
func (c *Collector) Associations() int64 {
	if c == nil {
		return 0
	}
	return c.associations.Load()
}

// DeauthAttempted records one deauthentication attempt.
func (c *Collector) DeauthAttempted() {
	if c == nil {
		return
	}
	c.deauths.Add(1)
}

// Deauths returns the number of deauthentication attempts.
func (c *Collector) Deauths() int64 {
	if c == nil {
		return 0
	}
	return c.deauths.Load()
}

// ChannelHop records a channel switch.
func (c *Collector) ChannelHop() {
	if c == nil {
		return
	}
	c.hops.Add(1)
}

// Hops returns the number of channel switches.
func (c *Collector) Hops() int64 {
	if c == nil {
		return 0
	}
	return c.hops.Load()
}

// HandshakeCaptured records a handshake reported by bettercap.
func (c *Collector) HandshakeCaptured() {
	if c == nil {
		return
	}
	c.handshakes.Add(1)
}

// Handshakes returns the number of captured handshakes.
func (c *Collector) Handshakes() int64 {
	if c == nil {
		return 0
	}
	return c.handshakes.Load()
}

// ── Fault metrics ────────────────────────────────────────────────────

// RecordFault increments the fault counter and stores the message.
func (c *Collector) RecordFault(msg string) {
	if c == nil {
		return
	}
	c.faults.Add(1)
	c.mu.Lock()
	c.lastFault = time.Now()
	c.lastFaultMsg = msg
	c.mu.Unlock()
}

// FaultCount returns the total number of faults recorded.
func (c *Collector) FaultCount() int64 {
	if c == nil {
		return 0
	}
	return c.faults.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	Iterations       int64  `json:"iterations"`
	Epochs           int64  `json:"epochs"`
	Faults           int64  `json:"faults"`
	Associations     int64  `json:"associations"`
	Deauths          int64  `json:"deauths"`
	Hops             int64  `json:"hops"`
	Handshakes       int64  `json:"handshakes"`
	LastEpoch        string `json:"last_epoch,omitempty"`
	LastFault        string `json:"last_fault,omitempty"`
	LastFaultMessage string `json:"last_fault_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:       time.Since(c.startTime).Truncate(time.Second).String(),
		Iterations:   c.iterations.Load(),
		Epochs:       c.epochs.Load(),
		Faults:       c.faults.Load(),
		Associations: c.associations.Load(),
		Deauths:      c.deauths.Load(),
		Hops:         c.hops.Load(),
		Handshakes:   c.handshakes.Load(),
	}
	if !c.lastEpoch.IsZero() {
		s.LastEpoch = c.lastEpoch.Format(time.RFC3339)
	}
	if !c.lastFault.IsZero() {
		s.LastFault = c.lastFault.Format(time.RFC3339)
		s.LastFaultMessage = c.lastFaultMsg
	}
	return s
}

// JSON returns the snapshot as a compact JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.Marshal(s)
	return string(data)
}
