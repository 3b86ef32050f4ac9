package config

// loader.go - configuration loading from YAML files and environment
// variables.
//
// Precedence order (highest wins):
//   1. Environment variables  (LoadFromEnv)
//   2. User config file       (-U, only if it exists)
//   3. Main config file       (-C)
//   4. Defaults               (defaults.go)

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source records which files contributed to a loaded Config.
type Source struct {
	Main     string // empty when the main file was missing
	User     string // empty when the user file was missing
	Fallback bool   // true when built-in defaults were used for -C
}

// Load builds the effective configuration.  Keys present in the main
// file override the defaults, keys present in the user file override
// both; anything absent keeps its previous value.  A missing main file
// falls back to defaults, a missing user file is skipped.
func Load(path, userPath string) (*Config, Source, error) {
	cfg := Default()
	var src Source

	found, err := mergeFile(cfg, path)
	if err != nil {
		return nil, src, err
	}
	if found {
		src.Main = path
	} else {
		src.Fallback = true
	}

	if userPath != "" {
		found, err = mergeFile(cfg, userPath)
		if err != nil {
			return nil, src, err
		}
		if found {
			src.User = userPath
		}
	}

	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, src, err
	}
	return cfg, src, nil
}

// Parse decodes a single YAML document over the defaults and validates
// the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeInto(cfg, r); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes path over cfg.  It reports false, without error,
// when the file does not exist.
func mergeFile(cfg *Config, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := decodeInto(cfg, bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

// decodeInto relies on yaml.v3 leaving fields that are absent from the
// document untouched, which gives a key-by-key merge for free.
func decodeInto(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the GOPWN_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GOPWN_NAME"); v != "" {
		cfg.Main.Name = v
	}
	if v := os.Getenv("GOPWN_LOG"); v != "" {
		cfg.Main.Log = v
	}
	if v := os.Getenv("GOPWN_PLUGINS"); v != "" {
		cfg.Main.Plugins = &v
	}
	if v := os.Getenv("GOPWN_IFACE"); v != "" {
		cfg.Main.Iface = v
	}
	if envBool("GOPWN_DEBUG") {
		cfg.Main.Debug = true
	}

	// bettercap
	if v := os.Getenv("GOPWN_BETTERCAP_HOST"); v != "" {
		cfg.Bettercap.Hostname = v
	}
	if v := envInt("GOPWN_BETTERCAP_PORT"); v > 0 {
		cfg.Bettercap.Port = v
	}
	if v := os.Getenv("GOPWN_BETTERCAP_USER"); v != "" {
		cfg.Bettercap.Username = v
	}
	if v := os.Getenv("GOPWN_BETTERCAP_PASSWORD"); v != "" {
		cfg.Bettercap.Password = v
	}

	// personality
	if v := envInt("GOPWN_RECON_TIME"); v > 0 {
		cfg.Personality.ReconTime = secondsDuration(v)
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
