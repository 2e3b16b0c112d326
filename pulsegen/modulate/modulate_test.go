package modulate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/go-pulsegen/pulsegen/pwm"
)

func TestFoldDuties(t *testing.T) {
	// Two windows of 4 samples: one at peak amplitude, one silent.
	data := []float32{100, -100, 100, -100, 0, 0, 0, 0}
	duties := foldDuties(data, 4)

	require.Len(t, duties, 2)
	assert.Equal(t, uint8(15), duties[0], "window at peak amplitude maps to full duty")
	assert.Equal(t, uint8(0), duties[1], "silent window maps to duty 0")
}

func TestFoldDuties_PartialWindow(t *testing.T) {
	data := []float32{50, 50, 50, 50, 100}
	duties := foldDuties(data, 4)

	require.Len(t, duties, 2)
	assert.Equal(t, uint8(8), duties[0], "half of peak rounds to duty 8")
	assert.Equal(t, uint8(15), duties[1], "trailing partial window is averaged on its own")
}

func TestFoldDuties_Silence(t *testing.T) {
	duties := foldDuties([]float32{0, 0, 0, 0}, 2)
	assert.Equal(t, []uint8{0, 0}, duties, "all-silent stream must not divide by zero")
}

func TestModulator_Program(t *testing.T) {
	data := []float32{100, 100, 0, 0} // two windows: duty 15 then 0
	m, err := newModulator(data, 2, WithWindowSamples(2), WithUpdateEvery(3))
	require.NoError(t, err)

	assert.Equal(t, 7, m.Len(), "two windows of three ticks plus the disable word")

	expectWord := func(duty uint8, trigger bool) uint8 {
		return pwm.ControlWord{Trigger: trigger, Channel: 2, Duty: duty}.Encode()
	}

	var got []uint8
	for {
		w, reset, ok := m.Next()
		if !ok {
			break
		}
		assert.False(t, reset)
		got = append(got, w)
	}

	expected := []uint8{
		expectWord(15, true), expectWord(15, true), expectWord(15, true),
		expectWord(0, true), expectWord(0, true), expectWord(0, true),
		expectWord(0, false), // final disable
	}
	assert.Equal(t, expected, got)

	// The program has ended for good.
	_, _, ok := m.Next()
	assert.False(t, ok)
}

func TestModulator_Validation(t *testing.T) {
	_, err := newModulator(nil, 0)
	assert.Error(t, err, "empty stream is rejected")

	_, err = newModulator([]float32{1}, 0, WithWindowSamples(0))
	assert.Error(t, err)

	_, err = newModulator([]float32{1}, 0, WithUpdateEvery(0))
	assert.Error(t, err)

	_, err = NewFromFile("nope.flac", 9)
	assert.Error(t, err, "channel out of range is rejected before decoding")
}

func TestNewFromFile_UnsupportedFormat(t *testing.T) {
	_, err := NewFromFile("nope.flac", 0)
	assert.Error(t, err)
}
