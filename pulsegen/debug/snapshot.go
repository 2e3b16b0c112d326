package debug

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const (
	// pngLaneHeight is the pixel height of one channel lane in PNG
	// snapshots, including a one-pixel separator row.
	pngLaneHeight = 9
	// pngHighRows is how many rows of the lane are filled while the
	// channel output is asserted.
	pngHighRows = 6
)

// TakeSnapshot handles the snapshot key for frontends: it writes both a
// text-art and a PNG rendering of the current waveform history to the
// working directory, logging rather than returning failures.
func TakeSnapshot(trace *Trace, snap *Snapshot) {
	if trace == nil || trace.Len() == 0 {
		slog.Warn("No waveform data available for snapshot")
		return
	}

	if err := SaveTraceArtToDir(trace, snap, "pulsegen_snapshot", ""); err != nil {
		slog.Error("Failed to save waveform snapshot", "error", err)
	}
	if err := SaveTracePNGToDir(trace, "pulsegen_snapshot", ""); err != nil {
		slog.Error("Failed to save PNG snapshot", "error", err)
	}
}

// SaveTraceArtToDir saves the waveform history as block-character text art
// with a timestamped filename. One line per channel, oldest tick first.
func SaveTraceArtToDir(trace *Trace, snap *Snapshot, baseName, directory string) error {
	window := trace.Window(trace.Len())

	path, err := snapshotPath(baseName, "txt", directory)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating snapshot file")
	}
	defer file.Close()

	fmt.Fprintf(file, "# PWM waveform snapshot\n")
	fmt.Fprintf(file, "# Channels: %d, Ticks shown: %d\n", trace.Channels(), len(window))
	if snap != nil {
		fmt.Fprintf(file, "# Total ticks: %d, Latched word: %s\n", snap.Ticks, snap.Latched)
	}
	fmt.Fprintf(file, "# Legend: █=high ·=low\n")
	fmt.Fprintf(file, "#\n")

	for ch := 0; ch < trace.Channels(); ch++ {
		fmt.Fprintf(file, "ch%d |", ch)
		for _, v := range window {
			if v.Bit(ch) {
				fmt.Fprintf(file, "█")
			} else {
				fmt.Fprintf(file, "·")
			}
		}
		fmt.Fprintf(file, "|\n")
	}

	slog.Info("Snapshot saved", "path", path, "ticks", len(window), "format", "text")
	return nil
}

// SaveTracePNGToDir saves the waveform history as a PNG, one lane per
// channel with the lane filled while the output is asserted.
func SaveTracePNGToDir(trace *Trace, baseName, directory string) error {
	window := trace.Window(trace.Len())
	if len(window) == 0 {
		return errors.New("no waveform data to save")
	}

	width := len(window)
	height := trace.Channels() * pngLaneHeight

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	high := color.RGBA{R: 0x30, G: 0xE0, B: 0x60, A: 0xFF}
	low := color.RGBA{R: 0x10, G: 0x30, B: 0x18, A: 0xFF}

	for ch := 0; ch < trace.Channels(); ch++ {
		laneTop := ch * pngLaneHeight
		for x, v := range window {
			for y := 0; y < pngLaneHeight-1; y++ {
				c := low
				if v.Bit(ch) && y >= pngLaneHeight-1-pngHighRows {
					c = high
				}
				img.Set(x, laneTop+y, c)
			}
		}
	}

	path, err := snapshotPath(baseName, "png", directory)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating snapshot file")
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return errors.Wrap(err, "encoding PNG")
	}

	slog.Info("Snapshot saved", "path", path, "size", fmt.Sprintf("%dx%d", width, height), "format", "PNG")
	return nil
}

func snapshotPath(baseName, ext, directory string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.%s", baseName, timestamp, ext)

	if directory == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "resolving working directory")
		}
		directory = cwd
	}

	return filepath.Join(directory, filename), nil
}
