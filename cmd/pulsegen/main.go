package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/halvard/go-pulsegen/pulsegen"
	"github.com/halvard/go-pulsegen/pulsegen/backend"
	"github.com/halvard/go-pulsegen/pulsegen/backend/headless"
	"github.com/halvard/go-pulsegen/pulsegen/backend/sdl2"
	"github.com/halvard/go-pulsegen/pulsegen/backend/terminal"
	"github.com/halvard/go-pulsegen/pulsegen/capture"
	"github.com/halvard/go-pulsegen/pulsegen/modulate"
	"github.com/halvard/go-pulsegen/pulsegen/pwm"
	"github.com/halvard/go-pulsegen/pulsegen/stim"
	"github.com/halvard/go-pulsegen/pulsegen/timing"
)

// headlessTicksPerUpdate batches ticks between backend updates when no
// display is pacing the loop.
const headlessTicksPerUpdate = 256

func main() {
	app := cli.NewApp()
	app.Name = "pulsegen"
	app.Description = "A multi-channel PWM output generator with scope and capture frontends"
	app.Usage = "pulsegen [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "channels",
			Usage: "Number of PWM output channels (1-7)",
			Value: 4,
		},
		cli.IntFlag{
			Name:  "width",
			Usage: "Counter width in bits (8-64)",
			Value: 8,
		},
		cli.Uint64Flag{
			Name:  "ticks",
			Usage: "Number of ticks to run in headless mode",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "script",
			Usage: "Path to a stimulus script file",
		},
		cli.StringFlag{
			Name:  "audio",
			Usage: "Path to a .wav or .mp3 file used as a duty modulation source",
		},
		cli.IntFlag{
			Name:  "audio-channel",
			Usage: "Channel re-programmed by the audio modulation source",
			Value: 0,
		},
		cli.IntFlag{
			Name:  "update-every",
			Usage: "Ticks between duty updates from the audio source",
			Value: modulate.DefaultUpdateEvery,
		},
		cli.StringFlag{
			Name:  "word",
			Usage: "Hold a constant control word on the bus (e.g. 0x87, 0b10000111)",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a display (requires --ticks or a finite stimulus)",
		},
		cli.BoolFlag{
			Name:  "sdl",
			Usage: "Use the SDL2 scope instead of the terminal scope",
		},
		cli.StringFlag{
			Name:  "wav",
			Usage: "Capture one channel's output to a WAV file",
		},
		cli.IntFlag{
			Name:  "wav-channel",
			Usage: "Channel recorded by --wav",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "csv",
			Usage: "Capture all channel levels to a CSV file",
		},
		cli.StringFlag{
			Name:  "vcd",
			Usage: "Capture all channels to a VCD waveform dump",
		},
		cli.Uint64Flag{
			Name:  "snapshot-interval",
			Usage: "Save waveform snapshots every N ticks in headless mode (0 = disabled)",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save waveform snapshots (default: temp directory)",
		},
		cli.Float64Flag{
			Name:  "tick-rate",
			Usage: "Scope refresh rate in updates per second",
			Value: timing.DefaultUpdateRate,
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
	}
	app.Action = run

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running pulsegen", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if err := setupLogging(c.String("log-level")); err != nil {
		return err
	}

	gen, err := pwm.New(c.Int("channels"), c.Int("width"))
	if err != nil {
		return err
	}

	source, finiteTicks, err := buildSource(c)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := buildSinks(c)
	if err != nil {
		return err
	}

	opts := []pulsegen.RigOption{pulsegen.WithSinks(sinks...)}

	var b backend.Backend
	var ticksPerUpdate int

	if c.Bool("headless") {
		maxTicks := c.Uint64("ticks")
		if maxTicks == 0 {
			maxTicks = finiteTicks
		}
		if maxTicks == 0 {
			return errors.New("headless mode requires --ticks or a finite stimulus (--script, --audio)")
		}

		snapshotConfig, err := headless.CreateSnapshotConfig(
			c.Uint64("snapshot-interval"), c.String("snapshot-dir"), "pulsegen")
		if err != nil {
			return err
		}

		b = headless.New(maxTicks, snapshotConfig)
		ticksPerUpdate = headlessTicksPerUpdate
	} else {
		if c.Bool("sdl") {
			b = sdl2.New()
		} else {
			b = terminal.New()
		}
		ticksPerUpdate = timing.DefaultTicksPerUpdate
		limiter := timing.NewTickerLimiter(c.Float64("tick-rate"))
		defer limiter.Stop()
		opts = append(opts, pulsegen.WithLimiter(limiter))
	}

	opts = append(opts, pulsegen.WithTicksPerUpdate(ticksPerUpdate))
	rig := pulsegen.NewRig(gen, source, opts...)

	config := backend.Config{
		Title:          "pulsegen",
		Channels:       gen.Channels(),
		UpdateRate:     c.Float64("tick-rate"),
		TicksPerUpdate: ticksPerUpdate,
		ShowDebug:      true,
		DebugProvider:  rig,
	}

	if err := b.Init(config); err != nil {
		return err
	}
	defer b.Cleanup()

	if err := rig.Run(b); err != nil {
		return err
	}

	return closeSinks()
}

func setupLogging(level string) error {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return errors.Errorf("unknown log level %q", level)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))
	return nil
}

// buildSource picks the stimulus source from the CLI flags. finiteTicks is
// the program length for finite sources, 0 otherwise.
func buildSource(c *cli.Context) (source stim.Source, finiteTicks uint64, err error) {
	scriptPath := c.String("script")
	audioPath := c.String("audio")
	wordFlag := c.String("word")

	given := 0
	for _, f := range []string{scriptPath, audioPath, wordFlag} {
		if f != "" {
			given++
		}
	}
	if given > 1 {
		return nil, 0, errors.New("at most one of --script, --audio, --word may be given")
	}

	switch {
	case scriptPath != "":
		f, err := os.Open(scriptPath)
		if err != nil {
			return nil, 0, errors.Wrap(err, "opening script")
		}
		defer f.Close()
		script, err := stim.ParseScript(f)
		if err != nil {
			return nil, 0, err
		}
		slog.Info("Loaded stimulus script", "path", scriptPath, "ticks", script.Len())
		return script, uint64(script.Len()), nil

	case audioPath != "":
		mod, err := modulate.NewFromFile(audioPath, c.Int("audio-channel"),
			modulate.WithUpdateEvery(c.Int("update-every")))
		if err != nil {
			return nil, 0, err
		}
		slog.Info("Loaded modulation source", "path", audioPath, "ticks", mod.Len())
		return mod, uint64(mod.Len()), nil

	case wordFlag != "":
		raw, err := strconv.ParseUint(wordFlag, 0, 8)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "parsing control word %q", wordFlag)
		}
		return stim.NewHold(uint8(raw)), 0, nil

	default:
		return stim.NewQueue(), 0, nil
	}
}

// buildSinks creates the capture sinks requested by the CLI flags and a
// function finalizing them all.
func buildSinks(c *cli.Context) ([]capture.Sink, func() error, error) {
	var sinks []capture.Sink
	var finalizers []func() error

	if path := c.String("wav"); path != "" {
		rec, err := capture.NewWAVRecorder(path, c.Int("wav-channel"), capture.DefaultWAVSampleRate)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, rec)
		finalizers = append(finalizers, rec.End)
	}

	if path := c.String("csv"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating csv file")
		}
		rec, err := capture.NewCSVRecorder(f, c.Int("channels"))
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		sinks = append(sinks, rec)
		finalizers = append(finalizers, func() error {
			if err := rec.End(); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		})
	}

	if path := c.String("vcd"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating vcd file")
		}
		rec, err := capture.NewVCDRecorder(f, c.Int("channels"))
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		sinks = append(sinks, rec)
		finalizers = append(finalizers, func() error {
			if err := rec.End(); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		})
	}

	closeAll := func() error {
		var firstErr error
		for _, fin := range finalizers {
			if err := fin(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	return sinks, closeAll, nil
}
