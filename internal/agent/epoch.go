package agent

import (
	"fmt"
	"sync"
	"time"

	"gopwn/internal/session"
	"gopwn/internal/wifi"
)

// Mood is derived from how many consecutive epochs passed with or
// without activity.
type Mood string

const (
	MoodNormal  Mood = ""
	MoodBored   Mood = "bored"
	MoodSad     Mood = "sad"
	MoodExcited Mood = "excited"
)

// Thresholds are the consecutive-epoch counts that change the mood.
type Thresholds struct {
	Bored   int
	Sad     int
	Excited int
}

// Stats is the record of one finished epoch.
type Stats struct {
	Epoch      int           `json:"epoch"`
	Duration   time.Duration `json:"duration"`
	SleptFor   time.Duration `json:"slept_for"`
	Blind      int           `json:"blind_for_epochs"`
	Inactive   int           `json:"inactive_for_epochs"`
	Active     int           `json:"active_for_epochs"`
	Hops       int           `json:"channel_hops"`
	Missed     int           `json:"missed_interactions"`
	Deauths    int           `json:"num_deauths"`
	Assocs     int           `json:"num_associations"`
	Handshakes int           `json:"num_handshakes"`
	APs        int           `json:"access_points"`
	Channels   int           `json:"busy_channels"`
	Mood       Mood          `json:"mood"`
	Reward     float64       `json:"reward"`
}

// String is the statistics line logged after every epoch.  The
// session reader parses it back.
func (s Stats) String() string {
	return fmt.Sprintf("[epoch %d] duration=%s slept_for=%s blind=%d inactive=%d active=%d hops=%d missed=%d deauths=%d assocs=%d handshakes=%d reward=%.4f",
		s.Epoch, session.Humanize(s.Duration), session.Humanize(s.SleptFor),
		s.Blind, s.Inactive, s.Active, s.Hops, s.Missed,
		s.Deauths, s.Assocs, s.Handshakes, s.Reward)
}

// Epoch tracks what happens between two NextEpoch calls and the
// streaks that carry over between them.  Safe for concurrent use: the
// event poller tracks handshakes while the loop tracks the rest.
type Epoch struct {
	mu  sync.Mutex
	th  Thresholds
	now func() time.Time

	epoch   int
	started time.Time

	// streaks, in epochs
	inactiveFor int
	activeFor   int
	blindFor    int
	sadFor      int
	boredFor    int

	// current epoch
	didDeauth     bool
	didAssociate  bool
	didHandshakes bool
	anyActivity   bool
	numDeauths    int
	numAssocs     int
	numMissed     int
	numHops       int
	numShakes     int
	sleptFor      time.Duration
	aps           int
	busyChannels  int
}

// NewEpoch starts tracking at epoch 0.
func NewEpoch(th Thresholds) *Epoch {
	e := &Epoch{th: th, now: time.Now}
	e.started = e.now()
	return e
}

// Number returns the current epoch ordinal.
func (e *Epoch) Number() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

// Observe records the access points seen by the last recon.
func (e *Epoch) Observe(aps []wifi.AccessPoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aps = len(aps)
	if e.aps == 0 {
		e.blindFor++
	} else {
		e.blindFor = 0
	}
}

// ObserveChannels records how many channels had access points.
func (e *Epoch) ObserveChannels(busy int) {
	e.mu.Lock()
	e.busyChannels = busy
	e.mu.Unlock()
}

func (e *Epoch) TrackDeauth() {
	e.mu.Lock()
	e.didDeauth = true
	e.anyActivity = true
	e.numDeauths++
	e.mu.Unlock()
}

func (e *Epoch) TrackAssoc() {
	e.mu.Lock()
	e.didAssociate = true
	e.anyActivity = true
	e.numAssocs++
	e.mu.Unlock()
}

func (e *Epoch) TrackHandshake() {
	e.mu.Lock()
	e.didHandshakes = true
	e.numShakes++
	e.mu.Unlock()
}

func (e *Epoch) TrackMiss() {
	e.mu.Lock()
	e.numMissed++
	e.mu.Unlock()
}

func (e *Epoch) TrackHop() {
	e.mu.Lock()
	e.numHops++
	e.mu.Unlock()
}

func (e *Epoch) TrackSleep(d time.Duration) {
	e.mu.Lock()
	e.sleptFor += d
	e.mu.Unlock()
}

// Missed returns the interactions missed in the current epoch.
func (e *Epoch) Missed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.numMissed
}

// AnyActivity reports whether an association or deauth was sent in the
// current epoch.
func (e *Epoch) AnyActivity() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.anyActivity
}

// DidDeauth and DidAssociate decide how long to dwell before a hop.
func (e *Epoch) DidDeauth() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.didDeauth
}

func (e *Epoch) DidAssociate() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.didAssociate
}

// InactiveFor returns the number of consecutive epochs without activity.
func (e *Epoch) InactiveFor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inactiveFor
}

// Next closes the current epoch, updates the streaks and the mood,
// and returns its statistics.  The ordinal is incremented afterwards.
func (e *Epoch) Next() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.anyActivity && !e.didHandshakes {
		e.inactiveFor++
		e.activeFor = 0
	} else {
		e.activeFor++
		e.inactiveFor = 0
		e.sadFor = 0
		e.boredFor = 0
	}

	mood := MoodNormal
	switch {
	case e.th.Sad > 0 && e.inactiveFor >= e.th.Sad:
		e.boredFor = 0
		e.sadFor++
		mood = MoodSad
	case e.th.Bored > 0 && e.inactiveFor >= e.th.Bored:
		e.sadFor = 0
		e.boredFor++
		mood = MoodBored
	default:
		e.sadFor = 0
		e.boredFor = 0
		if e.th.Excited > 0 && e.activeFor >= e.th.Excited {
			mood = MoodExcited
		}
	}

	now := e.now()
	st := Stats{
		Epoch:      e.epoch,
		Duration:   now.Sub(e.started),
		SleptFor:   e.sleptFor,
		Blind:      e.blindFor,
		Inactive:   e.inactiveFor,
		Active:     e.activeFor,
		Hops:       e.numHops,
		Missed:     e.numMissed,
		Deauths:    e.numDeauths,
		Assocs:     e.numAssocs,
		Handshakes: e.numShakes,
		APs:        e.aps,
		Channels:   e.busyChannels,
		Mood:       mood,
	}
	st.Reward = e.reward(st)

	e.epoch++
	e.started = now
	e.didDeauth, e.didAssociate, e.didHandshakes, e.anyActivity = false, false, false, false
	e.numDeauths, e.numAssocs, e.numMissed, e.numHops, e.numShakes = 0, 0, 0, 0, 0
	e.sleptFor = 0

	return st
}

// reward scores an epoch: handshakes per interaction, activity and
// channel coverage count positively; blindness, inactivity, misses
// and long sad or bored streaks count negatively.
func (e *Epoch) reward(st Stats) float64 {
	const tiny = 1e-20
	totEpochs := float64(e.epoch+1) + tiny
	interactions := st.Deauths + st.Assocs
	if st.Handshakes > interactions {
		interactions = st.Handshakes
	}
	totInteractions := float64(interactions) + tiny

	sad, bored := 0, 0
	if e.sadFor >= 5 {
		sad = e.sadFor
	}
	if e.boredFor >= 5 {
		bored = e.boredFor
	}

	h := float64(st.Handshakes) / totInteractions
	a := .2 * (float64(e.activeFor) / totEpochs)
	c := .1 * (float64(st.Hops) / wifi.NumChannels)
	b := -.3 * (float64(e.blindFor) / totEpochs)
	m := -.3 * (float64(st.Missed) / totInteractions)
	i := -.2 * (float64(e.inactiveFor) / totEpochs)
	s := -.2 * (float64(sad) / totEpochs)
	l := -.1 * (float64(bored) / totEpochs)

	return h + a + c + b + m + i + s + l
}
