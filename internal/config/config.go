// Package config loads the TOML configuration file and selects an
// application mode from the first CLI argument (§6, §9's "runtime
// reflection for configuration is replaced by an explicit sum type per
// application mode; selection is by the first CLI argument, not by
// string keys in a map"). It also owns the dated dump directory (§6) and
// an optional fsnotify hot-reload watcher for the subset of settings that
// are safe to change after the autonomy loop has started.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ModeKind discriminates the application's sum-typed run mode. HelpMode
// prints the mode directory and exits; it carries no section config.
type ModeKind int

const (
	HelpMode ModeKind = iota
	SimMode
	TeleopMode
	AutonomyMode
)

var modeNames = map[string]ModeKind{
	"help":     HelpMode,
	"sim":      SimMode,
	"teleop":   TeleopMode,
	"autonomy": AutonomyMode,
}

// ModeDirectory lists the known mode names, in the order `help` prints
// them.
var ModeDirectory = []string{"sim", "teleop", "autonomy"}

// ErrUnknownMode is returned when the first CLI argument names no known
// mode.
var ErrUnknownMode = fmt.Errorf("config: unknown mode, choices are %v", ModeDirectory)

// ParseMode resolves the first CLI argument into a ModeKind.
func ParseMode(arg string) (ModeKind, error) {
	kind, ok := modeNames[arg]
	if !ok {
		return 0, ErrUnknownMode
	}
	return kind, nil
}

// SimSection configures simulation mode: a spawned simulator process and
// its stdio framing, an external collaborator surface per §1.
type SimSection struct {
	SimulatorPath string `toml:"simulator_path"`
	LayoutPath    string `toml:"layout_path"`
}

// TeleopSection configures direct remote-operator control.
type TeleopSection struct {
	LunabaseAddr string `toml:"lunabase_addr"`
	LayoutPath   string `toml:"layout_path"`
}

// AutonomySection configures the full perception/planning/behavior stack.
type AutonomySection struct {
	LunabaseAddr    string  `toml:"lunabase_addr"`
	LayoutPath      string  `toml:"layout_path"`
	CellSizeMeters  float64 `toml:"cell_size_meters"`
	GridWidth       int     `toml:"grid_width"`
	GridHeight      int     `toml:"grid_height"`
	RadiusInCells   int     `toml:"radius_in_cells"`
	RetransmitMS    int     `toml:"retransmit_ms"`
	MetricsBackend  string  `toml:"metrics_backend"`
	TracingEnabled  bool    `toml:"tracing_enabled"`
	WebRTCSignaling string  `toml:"webrtc_signaling_addr"`
}

// File is the root TOML document: one section per application mode, per
// §6 ("TOML file with one section per application mode").
type File struct {
	Sim      SimSection      `toml:"sim"`
	Teleop   TeleopSection   `toml:"teleop"`
	Autonomy AutonomySection `toml:"autonomy"`
	// DumpDir, if set, overrides the default "dumps/" root the dated dump
	// directory is created under.
	DumpDir string `toml:"dump_dir"`
}

// Load parses the TOML file at path. A missing path is a fatal
// configuration error (§7: "Configuration errors — fatal at startup
// only"); it is the caller's job to treat the returned error that way.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &f, nil
}

// NewDumpDir creates and returns a dated dump directory under root (or
// "dumps" if root is empty), per §6's "Logs and artifacts are written
// under a dated dump directory."
func NewDumpDir(root string, now time.Time) (string, error) {
	if root == "" {
		root = "dumps"
	}
	dir := filepath.Join(root, now.Format("2006-01-02T15-04-05"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create dump dir %s: %w", dir, err)
	}
	return dir, nil
}
