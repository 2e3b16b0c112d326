package capture

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/halvard/go-pulsegen/pulsegen/pwm"
)

// CSVRecorder streams one row per tick: the tick index followed by each
// channel's level. Unlike the WAV recorder it does not buffer; Reset is a
// no-op because rows already written cannot be recalled.
type CSVRecorder struct {
	w        *csv.Writer
	channels int
	row      []string
}

// NewCSVRecorder writes a header row and returns the recorder.
func NewCSVRecorder(w io.Writer, channels int) (*CSVRecorder, error) {
	if channels < pwm.MinChannels || channels > pwm.MaxChannels {
		return nil, errors.Errorf("capture: csv channel count %d out of range [%d,%d]", channels, pwm.MinChannels, pwm.MaxChannels)
	}

	r := &CSVRecorder{
		w:        csv.NewWriter(w),
		channels: channels,
		row:      make([]string, channels+1),
	}

	header := make([]string, channels+1)
	header[0] = "tick"
	for i := 0; i < channels; i++ {
		header[i+1] = fmt.Sprintf("ch%d", i)
	}
	if err := r.w.Write(header); err != nil {
		return nil, errors.Wrap(err, "capture: writing csv header")
	}

	return r, nil
}

func (r *CSVRecorder) Record(tick uint64, out pwm.OutputVector) {
	r.row[0] = strconv.FormatUint(tick, 10)
	for i := 0; i < r.channels; i++ {
		if out.Bit(i) {
			r.row[i+1] = "1"
		} else {
			r.row[i+1] = "0"
		}
	}
	// Errors surface from End via the csv writer's sticky error.
	_ = r.w.Write(r.row)
}

func (r *CSVRecorder) End() error {
	r.w.Flush()
	return errors.Wrap(r.w.Error(), "capture: flushing csv")
}

func (r *CSVRecorder) Reset() {}
