package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultConfigPath is the main configuration file (-C).
	DefaultConfigPath = "/etc/gopwn/config.yml"

	// DefaultUserConfigPath is merged over the main file when it exists (-U).
	DefaultUserConfigPath = "/etc/gopwn/custom.yml"

	// DefaultPluginPath is always scanned for plugin manifests.
	DefaultPluginPath = "/usr/local/share/gopwn/plugins"

	// DefaultName is the unit name shown in the banner and on the display.
	DefaultName = "gopwn"

	// DefaultLogPath is the session log read back in manual mode.
	DefaultLogPath = "/var/log/gopwn.log"

	// DefaultIdentityPath holds the unit's private key.
	DefaultIdentityPath = "/etc/gopwn/id_ed25519"

	// DefaultIface is the monitor interface bettercap is bound to.
	DefaultIface = "mon0"

	// DefaultMonStartCmd brings the monitor interface up.
	DefaultMonStartCmd = "/usr/bin/monstart"

	// DefaultConnectivityAddr is dialled to decide whether the internet
	// is reachable.
	DefaultConnectivityAddr = "1.1.1.1:53"

	// DefaultConnectivityTimeout bounds a single connectivity check.
	DefaultConnectivityTimeout = 2 * time.Second

	// DefaultManualInterval is the manual mode poll interval.
	DefaultManualInterval = time.Second

	// DefaultBettercapScheme, Host and Port locate the bettercap REST api.
	DefaultBettercapScheme = "http"
	DefaultBettercapHost   = "localhost"
	DefaultBettercapPort   = 8081

	// DefaultBettercapUser and Password are bettercap's api.rest credentials.
	DefaultBettercapUser     = "gopwn"
	DefaultBettercapPassword = "gopwn"

	// DefaultAPITimeout bounds a single bettercap REST request.
	DefaultAPITimeout = 10 * time.Second

	// DefaultReadyAttempts is how many times to probe the api at startup.
	DefaultReadyAttempts = 30

	// DefaultReconTime is how long a full recon dwells.
	DefaultReconTime = 30 * time.Second

	// DefaultMinReconTime is used instead of the recon time when the
	// unit has been inactive.
	DefaultMinReconTime = 5 * time.Second

	// DefaultHopReconTime is the dwell before hopping to another channel.
	DefaultHopReconTime = 10 * time.Second

	// DefaultMaxInteractions caps association/deauth attempts per MAC.
	DefaultMaxInteractions = 3

	// DefaultMaxMissesForRecon marks the unit stale past this many misses.
	DefaultMaxMissesForRecon = 5

	// DefaultThrottleAssoc and DefaultThrottleDeauth space consecutive frames.
	DefaultThrottleAssoc = 400 * time.Millisecond
	DefaultThrottleDeauth = 900 * time.Millisecond

	// DefaultMinRSSI drops access points weaker than this.
	DefaultMinRSSI = -200

	// Mood thresholds, in consecutive inactive (or active) epochs.
	DefaultBoredEpochs   = 15
	DefaultSadEpochs     = 25
	DefaultExcitedEpochs = 10

	// DefaultPluginTimeout bounds a single exec plugin hook.
	DefaultPluginTimeout = 10 * time.Second

	// DefaultPluginMaxFailures disables a plugin after this many
	// consecutive hook failures.
	DefaultPluginMaxFailures = 5

	// DefaultPluginCooldown is how long a disabled plugin stays disabled.
	DefaultPluginCooldown = 5 * time.Minute
)

// DefaultSilence lists bettercap event tags that are ignored.
var DefaultSilence = []string{ //nolint:gochecknoglobals
	"ble.device.new",
	"ble.device.lost",
	"ble.device.disconnected",
	"ble.device.connected",
	"ble.device.service.discovered",
	"ble.device.characteristic.discovered",
	"wifi.client.probe",
	"wifi.client.new",
	"wifi.client.lost",
	"mod.started",
	"mod.stopped",
	"endpoint.new",
	"endpoint.lost",
}
