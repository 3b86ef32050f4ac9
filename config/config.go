// Package config defines the runtime configuration for gopwn and loads
// it from YAML files and the environment.
package config

import (
	"strings"
	"time"

	pwerr "gopwn/internal/errors"
	"gopwn/util"
)

// Config is the nested configuration tree.  Plugins receive it as-is
// on the internet_available event.
type Config struct {
	Main        Main        `yaml:"main" json:"main"`
	AI          AI          `yaml:"ai" json:"ai"`
	Personality Personality `yaml:"personality" json:"personality"`
	Bettercap   Bettercap   `yaml:"bettercap" json:"-"`
	UI          UI          `yaml:"ui" json:"ui"`
}

// Main holds process-wide settings.
type Main struct {
	Name  string `yaml:"name" json:"name"`
	Log   string `yaml:"log" json:"log"` // session log, parsed in manual mode
	Debug bool   `yaml:"debug" json:"debug"`

	// Plugins is an optional extra plugin directory loaded after the
	// default one.  A YAML null leaves it nil.
	Plugins *string `yaml:"plugins" json:"plugins"`

	Iface            string   `yaml:"iface" json:"iface"`
	MonStartCmd      string   `yaml:"mon_start_cmd" json:"mon_start_cmd"`
	Whitelist        []string `yaml:"whitelist" json:"whitelist"`
	Identity         string   `yaml:"identity" json:"identity"`
	ConnectivityAddr string   `yaml:"connectivity_addr" json:"connectivity_addr"`
}

// AI toggles the learning policy.  Only the static personality is
// implemented; Enabled is reported and otherwise ignored.
type AI struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Personality tunes recon timing and interaction limits.
type Personality struct {
	Associate         bool          `yaml:"associate" json:"associate"`
	Deauth            bool          `yaml:"deauth" json:"deauth"`
	Channels          []int         `yaml:"channels" json:"channels"` // empty: all channels
	MinRSSI           int           `yaml:"min_rssi" json:"min_rssi"`
	ReconTime         time.Duration `yaml:"recon_time" json:"recon_time"`
	MinReconTime      time.Duration `yaml:"min_recon_time" json:"min_recon_time"`
	HopReconTime      time.Duration `yaml:"hop_recon_time" json:"hop_recon_time"`
	MaxInteractions   int           `yaml:"max_interactions" json:"max_interactions"`
	MaxMissesForRecon int           `yaml:"max_misses_for_recon" json:"max_misses_for_recon"`
	ThrottleAssoc     time.Duration `yaml:"throttle_a" json:"throttle_a"`
	ThrottleDeauth    time.Duration `yaml:"throttle_d" json:"throttle_d"`
	BoredEpochs       int           `yaml:"bored_num_epochs" json:"bored_num_epochs"`
	SadEpochs         int           `yaml:"sad_num_epochs" json:"sad_num_epochs"`
	ExcitedEpochs     int           `yaml:"excited_num_epochs" json:"excited_num_epochs"`
}

// Bettercap locates the bettercap REST api.  Kept out of plugin payloads.
type Bettercap struct {
	Scheme   string   `yaml:"scheme"`
	Hostname string   `yaml:"hostname"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Silence  []string `yaml:"silence"`
}

// UI configures the terminal display.
type UI struct {
	Display Display `yaml:"display" json:"display"`
}

// Display toggles rendering.  With Enabled false the display keeps
// its state but writes nothing.
type Display struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	return &Config{
		Main: Main{
			Name:             DefaultName,
			Log:              DefaultLogPath,
			Iface:            DefaultIface,
			MonStartCmd:      DefaultMonStartCmd,
			Identity:         DefaultIdentityPath,
			ConnectivityAddr: DefaultConnectivityAddr,
		},
		Personality: Personality{
			Associate:         true,
			Deauth:            true,
			MinRSSI:           DefaultMinRSSI,
			ReconTime:         DefaultReconTime,
			MinReconTime:      DefaultMinReconTime,
			HopReconTime:      DefaultHopReconTime,
			MaxInteractions:   DefaultMaxInteractions,
			MaxMissesForRecon: DefaultMaxMissesForRecon,
			ThrottleAssoc:     DefaultThrottleAssoc,
			ThrottleDeauth:    DefaultThrottleDeauth,
			BoredEpochs:       DefaultBoredEpochs,
			SadEpochs:         DefaultSadEpochs,
			ExcitedEpochs:     DefaultExcitedEpochs,
		},
		Bettercap: Bettercap{
			Scheme:   DefaultBettercapScheme,
			Hostname: DefaultBettercapHost,
			Port:     DefaultBettercapPort,
			Username: DefaultBettercapUser,
			Password: DefaultBettercapPassword,
			Silence:  append([]string(nil), DefaultSilence...),
		},
		UI: UI{Display: Display{Enabled: true}},
	}
}

// PluginPath returns the extra plugin directory and whether one is set.
func (c *Config) PluginPath() (string, bool) {
	if c.Main.Plugins == nil || strings.TrimSpace(*c.Main.Plugins) == "" {
		return "", false
	}
	return *c.Main.Plugins, true
}

// BettercapURL returns the base URL of the REST api.
func (c *Config) BettercapURL() string {
	return c.Bettercap.Scheme + "://" + util.FormatAddr(c.Bettercap.Hostname, c.Bettercap.Port)
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Main.Name) == "" {
		return &pwerr.ConfigError{Field: "main.name", Message: "is required"}
	}
	if strings.TrimSpace(c.Main.Log) == "" {
		return &pwerr.ConfigError{
			Field:   "main.log",
			Message: "is required",
			Hint:    "manual mode reads the last session from this file",
		}
	}

	if c.Bettercap.Scheme != "http" && c.Bettercap.Scheme != "https" {
		return &pwerr.ConfigError{
			Field:   "bettercap.scheme",
			Value:   c.Bettercap.Scheme,
			Message: "must be http or https",
		}
	}
	if c.Bettercap.Hostname == "" {
		return &pwerr.ConfigError{Field: "bettercap.hostname", Message: "is required"}
	}
	if c.Bettercap.Port < 1 || c.Bettercap.Port > 65535 {
		return &pwerr.ConfigError{
			Field:   "bettercap.port",
			Value:   c.Bettercap.Port,
			Message: "out of range 1-65535",
			Hint:    "use a port between 1 and 65535",
		}
	}

	p := c.Personality
	for _, ch := range p.Channels {
		if ch < 1 || ch > 177 {
			return &pwerr.ConfigError{
				Field:   "personality.channels",
				Value:   ch,
				Message: "not a wifi channel",
			}
		}
	}
	if p.MaxInteractions < 0 {
		return &pwerr.ConfigError{Field: "personality.max_interactions", Value: p.MaxInteractions, Message: "must not be negative"}
	}
	if p.MaxMissesForRecon < 0 {
		return &pwerr.ConfigError{Field: "personality.max_misses_for_recon", Value: p.MaxMissesForRecon, Message: "must not be negative"}
	}
	for field, d := range map[string]time.Duration{
		"personality.recon_time":     p.ReconTime,
		"personality.min_recon_time": p.MinReconTime,
		"personality.hop_recon_time": p.HopReconTime,
		"personality.throttle_a":     p.ThrottleAssoc,
		"personality.throttle_d":     p.ThrottleDeauth,
	} {
		if d < 0 {
			return &pwerr.ConfigError{Field: field, Value: d, Message: "must not be negative"}
		}
	}

	return nil
}
