// Package headless runs the rig without a display, for batch captures and
// automated verification runs.
package headless

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/halvard/go-pulsegen/pulsegen/backend"
	"github.com/halvard/go-pulsegen/pulsegen/debug"
	"github.com/halvard/go-pulsegen/pulsegen/input/action"
	"github.com/halvard/go-pulsegen/pulsegen/input/event"
)

// Backend implements the backend interface for batch processing. It counts
// the ticks the rig has run, writes interval waveform snapshots, and emits
// a quit event once the tick budget is spent.
type Backend struct {
	config         backend.Config
	ticks          uint64
	maxTicks       uint64
	updates        int
	snapshotConfig SnapshotConfig
	lastSnapshot   uint64
}

// SnapshotConfig holds configuration for waveform snapshots.
type SnapshotConfig struct {
	Enabled   bool
	Interval  uint64 // Save snapshot every N ticks
	Directory string // Directory to save snapshots
	BaseName  string // Base name for snapshot filenames
}

// progressLogEvery is how many updates pass between progress log lines.
const progressLogEvery = 50

func New(maxTicks uint64, snapshotConfig SnapshotConfig) *Backend {
	return &Backend{
		maxTicks:       maxTicks,
		snapshotConfig: snapshotConfig,
	}
}

func (h *Backend) Init(config backend.Config) error {
	h.config = config

	slog.Info("Running headless mode",
		"ticks", h.maxTicks,
		"snapshot_interval", h.snapshotConfig.Interval,
		"snapshot_dir", h.snapshotConfig.Directory)

	// Set up debug logging for headless mode
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return nil
}

// Update accounts for one batch of ticks and handles snapshots.
func (h *Backend) Update(trace *debug.Trace) ([]backend.InputEvent, error) {
	var events []backend.InputEvent

	h.updates++
	h.ticks += uint64(h.config.TicksPerUpdate)

	if h.snapshotConfig.Enabled && h.ticks-h.lastSnapshot >= h.snapshotConfig.Interval {
		h.saveSnapshot(trace)
		h.lastSnapshot = h.ticks
	}

	if h.updates%progressLogEvery == 0 {
		slog.Info("Tick progress", "completed", h.ticks, "total", h.maxTicks)
	}

	if h.ticks >= h.maxTicks {
		// Save a final snapshot if one wasn't just taken.
		if h.snapshotConfig.Enabled && h.lastSnapshot < h.ticks {
			h.saveSnapshot(trace)
			h.lastSnapshot = h.ticks
		}

		if h.snapshotConfig.Enabled {
			slog.Info("Headless run completed", "ticks", h.ticks, "snapshots_saved_to", h.snapshotConfig.Directory)
		} else {
			slog.Info("Headless run completed", "ticks", h.ticks)
		}

		// Signal completion via quit event
		events = append(events, backend.InputEvent{Action: action.RigQuit, Type: event.Press})
	}

	return events, nil
}

func (h *Backend) Cleanup() error {
	return nil
}

// CreateSnapshotConfig creates a snapshot configuration from CLI parameters.
func CreateSnapshotConfig(interval uint64, directory, baseName string) (SnapshotConfig, error) {
	config := SnapshotConfig{
		Enabled:  interval > 0,
		Interval: interval,
		BaseName: baseName,
	}

	if !config.Enabled {
		return config, nil
	}

	if directory == "" {
		tempDir, err := os.MkdirTemp("", "pulsegen-snapshots-*")
		if err != nil {
			return config, errors.Wrap(err, "creating snapshot directory")
		}
		config.Directory = tempDir
	} else {
		if err := os.MkdirAll(directory, 0755); err != nil {
			return config, errors.Wrap(err, "creating snapshot directory")
		}
		config.Directory = directory
	}

	if config.BaseName == "" {
		config.BaseName = "pulsegen"
	}

	return config, nil
}

// saveSnapshot writes text-art and PNG waveform snapshots for the current
// trace window.
func (h *Backend) saveSnapshot(trace *debug.Trace) {
	var snap *debug.Snapshot
	if h.config.DebugProvider != nil {
		snap = h.config.DebugProvider.ExtractSnapshot()
	}

	baseName := fmt.Sprintf("%s_tick_%d", h.snapshotConfig.BaseName, h.ticks)

	if err := debug.SaveTraceArtToDir(trace, snap, baseName, h.snapshotConfig.Directory); err != nil {
		slog.Error("Failed to save snapshot", "tick", h.ticks, "error", err)
	}
	if err := debug.SaveTracePNGToDir(trace, baseName, h.snapshotConfig.Directory); err != nil {
		slog.Error("Failed to save PNG snapshot", "tick", h.ticks, "error", err)
	}
}
