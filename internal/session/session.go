// Package session reads back the log of a previous run and condenses
// its last session into a Summary for manual mode reporting.
//
// The reader understands the line layout written by util.Logger:
//
//	2026-10-18T12:00:00.000Z [INF] [epoch 3] duration=00:01:02 ... reward=0.1234
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Tokens identifying the lines the reader cares about.  The agent and
// the bettercap client log these verbatim.
const (
	StartToken     = "connecting to http"
	TrainingToken  = "training epoch"
	DeauthToken    = "deauthing "
	AssocToken     = "sending association frame to "
	HandshakeToken = "!!! captured new handshake"
)

// TimeLayout is the timestamp layout of a log line (zap ISO8601).
const TimeLayout = "2006-01-02T15:04:05.000Z0700"

var (
	lineRe  = regexp.MustCompile(`^(\S+) \[(DBG|INF|WRN|ERR)\] (.*)$`)
	epochRe = regexp.MustCompile(`\[epoch (\d+)\] (.*)$`)
)

// Summary aggregates the last session of a log file.
type Summary struct {
	Path          string        `json:"path"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration"`
	DurationHuman string        `json:"duration_human"`
	Epochs        int           `json:"epochs"`
	TrainEpochs   int           `json:"train_epochs"`
	LastEpoch     int           `json:"last_epoch"`
	AvgReward     float64       `json:"avg_reward"`
	MinReward     float64       `json:"min_reward"`
	MaxReward     float64       `json:"max_reward"`
	Deauthed      int           `json:"deauthed"`
	Associated    int           `json:"associated"`
	Handshakes    int           `json:"handshakes"`
}

// Digest is the one-line human summary logged on manual mode entry.
func (s *Summary) Digest() string {
	return fmt.Sprintf(
		"the last session lasted %s (%d completed epochs, trained for %d), average reward:%s (min:%s max:%s)",
		s.DurationHuman, s.Epochs, s.TrainEpochs,
		formatReward(s.AvgReward), formatReward(s.MinReward), formatReward(s.MaxReward))
}

// Parse reads the log at path.  A missing file yields an empty summary.
func Parse(path string) (*Summary, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		s := &Summary{Path: path}
		s.DurationHuman = Humanize(0)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session log: %w", err)
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("session log %s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

type line struct {
	at  time.Time
	msg string
}

// Read parses a log stream.  Only the last session, starting at the
// last line containing StartToken, is summarised.  Lines that do not
// carry a timestamp and level (stack traces, wrapped output) are
// skipped.
func Read(r io.Reader) (*Summary, error) {
	var lines []line

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		m := lineRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		at, err := time.Parse(TimeLayout, m[1])
		if err != nil {
			continue
		}
		if strings.Contains(m[3], StartToken) {
			lines = lines[:0]
		}
		lines = append(lines, line{at: at, msg: m[3]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return summarize(lines), nil
}

func summarize(lines []line) *Summary {
	s := &Summary{}
	if len(lines) > 0 {
		s.Started = lines[0].at
		s.Duration = lines[len(lines)-1].at.Sub(lines[0].at)
	}
	s.DurationHuman = Humanize(s.Duration)

	var total float64
	rewards := 0
	s.MinReward = math.Inf(1)
	s.MaxReward = math.Inf(-1)

	for _, l := range lines {
		switch {
		case strings.Contains(l.msg, TrainingToken):
			s.TrainEpochs++
		case strings.Contains(l.msg, HandshakeToken):
			s.Handshakes++
		case strings.Contains(l.msg, DeauthToken):
			s.Deauthed++
		case strings.Contains(l.msg, AssocToken):
			s.Associated++
		}

		m := epochRe.FindStringSubmatch(l.msg)
		if m == nil {
			continue
		}
		s.Epochs++
		if n, err := strconv.Atoi(m[1]); err == nil && n > s.LastEpoch {
			s.LastEpoch = n
		}
		if r, ok := fields(m[2])["reward"]; ok {
			if v, err := strconv.ParseFloat(r, 64); err == nil {
				total += v
				rewards++
				s.MinReward = math.Min(s.MinReward, v)
				s.MaxReward = math.Max(s.MaxReward, v)
			}
		}
	}

	if rewards == 0 {
		s.MinReward, s.MaxReward = 0, 0
	} else {
		s.AvgReward = total / float64(rewards)
	}
	return s
}

// fields splits "k1=v1 k2=v2" into a map.
func fields(s string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(s) {
		k, v, ok := strings.Cut(tok, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

// Humanize formats d as HH:MM:SS.
func Humanize(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

func formatReward(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
