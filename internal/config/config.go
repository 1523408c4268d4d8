// Package config loads, validates, and atomically swaps the
// supervisor's TOML configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full set of recognized fields, immutable within a
// tick and replaced atomically on reload.
type Config struct {
	ReserveMB        int      `toml:"reserve_mb"`
	SoftThresholdPct float64  `toml:"soft_threshold_pct"`
	HardThresholdPct float64  `toml:"hard_threshold_pct"`
	Mode             string   `toml:"mode"`
	ScanIntervalSec  int      `toml:"scan_interval_sec"`
	ExcludeNames     []string `toml:"exclude_names"`
	MaxActionsPerMin int      `toml:"max_actions_per_min"`
	PSIEnabled       bool     `toml:"psi_enabled"`
	PSISoftPct       float64  `toml:"psi_soft_pct"`
	PSIHardPct       float64  `toml:"psi_hard_pct"`
	ProtectedUnits   []string `toml:"protected_units"`

	// CLI carries the optional, currently-unconsumed presentation
	// settings round-tripped from the original tool's interactive
	// wizard. memsentineld parses and preserves this table but no
	// in-scope component reads from it.
	CLI CliUI `toml:"cli"`
}

// CliUI is round-tripped but not acted on by any in-scope component.
type CliUI struct {
	Color         bool `toml:"color"`
	Unicode       bool `toml:"unicode"`
	TableMaxWidth int  `toml:"table_max_width"`
}

// Mode values accepted by the action policy.
const (
	ModeKill   = "kill"
	ModeSlow   = "slow"
	ModeHybrid = "hybrid"
)

// SearchPaths are tried in order by LoadFirstFound when no explicit
// path is given.
var SearchPaths = []string{"/etc/memsentinel.toml", "./memsentinel.toml"}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		ReserveMB:        512,
		SoftThresholdPct: 15,
		HardThresholdPct: 5,
		Mode:             ModeHybrid,
		ScanIntervalSec:  2,
		ExcludeNames:     []string{"sshd", "systemd", "sentinel"},
		MaxActionsPerMin: 4,
		PSIEnabled:       true,
		PSISoftPct:       10.0,
		PSIHardPct:       30.0,
		ProtectedUnits:   []string{"sshd.service", "sentinel.service", "ssh.service"},
		CLI: CliUI{
			Color:         true,
			Unicode:       true,
			TableMaxWidth: 120,
		},
	}
}

// ParseError wraps a TOML decode failure with the raw decode error and
// a best-effort list of fields that look like typos of known keys,
// distinguished from fields that are merely additive/unrecognized.
type ParseError struct {
	Err          error
	SuspectTypos []string
}

func (e *ParseError) Error() string {
	if len(e.SuspectTypos) == 0 {
		return fmt.Sprintf("config: parse failed: %v", e.Err)
	}
	return fmt.Sprintf("config: parse failed: %v (possible typo in: %s)", e.Err, strings.Join(e.SuspectTypos, ", "))
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads and parses the TOML document at path. Undecoded keys
// (MetaData.Undecoded()) within edit distance 2 of a known key are
// treated as likely typos: Load returns a *ParseError listing them,
// alongside the decoded Config. Other unknown keys are treated as
// additive fields for forward compatibility and ignored silently.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, &ParseError{Err: err}
	}

	if typos := suspectTypos(meta.Undecoded()); len(typos) > 0 {
		return cfg, &ParseError{Err: fmt.Errorf("unrecognized keys: %v", meta.Undecoded()), SuspectTypos: typos}
	}

	return cfg, Validate(cfg)
}

// LoadFirstFound tries each of SearchPaths in order and loads the
// first one that exists. If none exist, returns Default() with no
// error — an absent config file is not a failure.
func LoadFirstFound() (Config, error) {
	for _, p := range SearchPaths {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return Default(), nil
}

// Validate checks structural invariants that DecodeFile's type system
// can't express: hard <= soft, a recognized mode string, positive
// intervals.
func Validate(cfg Config) error {
	if cfg.HardThresholdPct > cfg.SoftThresholdPct {
		return fmt.Errorf("config: hard_threshold_pct (%.1f) must be <= soft_threshold_pct (%.1f)", cfg.HardThresholdPct, cfg.SoftThresholdPct)
	}
	switch cfg.Mode {
	case ModeKill, ModeSlow, ModeHybrid:
	default:
		return fmt.Errorf("config: unrecognized mode %q", cfg.Mode)
	}
	if cfg.ScanIntervalSec <= 0 {
		return fmt.Errorf("config: scan_interval_sec must be positive, got %d", cfg.ScanIntervalSec)
	}
	if cfg.MaxActionsPerMin <= 0 {
		return fmt.Errorf("config: max_actions_per_min must be positive, got %d", cfg.MaxActionsPerMin)
	}
	return nil
}

// Lookup returns the string representation of a single top-level
// field by its TOML key name, mirroring the original CLI's
// `config get <key>` semantics. ok is false for unrecognized keys.
func (c Config) Lookup(key string) (value string, ok bool) {
	switch key {
	case "reserve_mb":
		return fmt.Sprintf("%d", c.ReserveMB), true
	case "soft_threshold_pct":
		return fmt.Sprintf("%g", c.SoftThresholdPct), true
	case "hard_threshold_pct":
		return fmt.Sprintf("%g", c.HardThresholdPct), true
	case "mode":
		return c.Mode, true
	case "scan_interval_sec":
		return fmt.Sprintf("%d", c.ScanIntervalSec), true
	case "exclude_names":
		return strings.Join(c.ExcludeNames, ","), true
	case "max_actions_per_min":
		return fmt.Sprintf("%d", c.MaxActionsPerMin), true
	case "psi_enabled":
		return fmt.Sprintf("%t", c.PSIEnabled), true
	case "psi_soft_pct":
		return fmt.Sprintf("%g", c.PSISoftPct), true
	case "psi_hard_pct":
		return fmt.Sprintf("%g", c.PSIHardPct), true
	case "protected_units":
		return strings.Join(c.ProtectedUnits, ","), true
	default:
		return "", false
	}
}

// Encode serializes cfg back to TOML, used by the round-trip test and
// by a future `config dump` diagnostic.
func Encode(cfg Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var knownKeys = []string{
	"reserve_mb", "soft_threshold_pct", "hard_threshold_pct", "mode",
	"scan_interval_sec", "exclude_names", "max_actions_per_min",
	"psi_enabled", "psi_soft_pct", "psi_hard_pct", "protected_units", "cli",
}

// suspectTypos filters undecoded keys down to ones that look like a
// near-miss of a known key (edit distance <= 2), as opposed to
// genuinely novel additive fields.
func suspectTypos(undecoded []toml.Key) []string {
	var typos []string
	for _, k := range undecoded {
		name := k.String()
		for _, known := range knownKeys {
			if name != known && editDistance(name, known) <= 2 {
				typos = append(typos, name)
				break
			}
		}
	}
	return typos
}

// editDistance computes Levenshtein distance between two short
// strings (config key names), small enough that a naive O(n*m) table
// is appropriate.
func editDistance(a, b string) int {
	la, lb := len(a), len(b)
	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}
	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			d[i][j] = min3(del, ins, sub)
		}
	}
	return d[la][lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
