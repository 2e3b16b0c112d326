package pwm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// word builds a raw control bus value from its fields.
func word(trigger bool, channel, duty uint8) uint8 {
	return ControlWord{Trigger: trigger, Channel: channel, Duty: duty}.Encode()
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		width    int
		wantErr  bool
	}{
		{"minimum bounds", 1, 8, false},
		{"maximum bounds", 7, 64, false},
		{"typical", 5, 8, false},
		{"zero channels", 0, 8, true},
		{"too many channels", 8, 8, true},
		{"width too narrow", 5, 7, true},
		{"width too wide", 5, 65, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.channels, tt.width)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, g)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.channels, g.Channels())
			assert.Equal(t, tt.width, g.Width())
		})
	}
}

func TestNew_InitialState(t *testing.T) {
	g, err := New(5, 8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.False(t, g.ChannelEnabled(i), "channel %d should start disabled", i)
		assert.Equal(t, uint64(0), g.ChannelThreshold(i), "channel %d threshold should start at 0", i)
		assert.Equal(t, uint64(0xFF), g.ChannelCounter(i), "channel %d counter should start all-set", i)
	}
	assert.Equal(t, uint64(0xFF), g.MaxCounter())
}

func TestTick_ResetClearsEverything(t *testing.T) {
	g, err := New(3, 8)
	require.NoError(t, err)

	// Configure and run channel 1 for a while first.
	g.Tick(word(true, 1, 9), false)
	for i := 0; i < 20; i++ {
		g.Tick(word(true, 1, 9), false)
	}
	require.True(t, g.ChannelEnabled(1), "channel 1 should be running before reset")

	out := g.Tick(0xFF, true)

	assert.Equal(t, OutputVector(0), out, "outputs should be low on a reset tick")
	assert.Equal(t, ControlWord{}, g.LatchedWord(), "reset should latch the zero word")
	for i := 0; i < 3; i++ {
		assert.False(t, g.ChannelEnabled(i), "channel %d should be disabled after reset", i)
		assert.Equal(t, uint64(0), g.ChannelThreshold(i), "channel %d threshold should be 0 after reset", i)
		assert.Equal(t, uint64(0xFF), g.ChannelCounter(i), "channel %d counter should be all-set after reset", i)
	}
}

func TestTick_OneTickConfigurationLatency(t *testing.T) {
	g, err := New(5, 8)
	require.NoError(t, err)

	raw := word(true, 0, 7)

	// Tick 1: the word is latched but not yet decoded into the configuration.
	out := g.Tick(raw, false)
	assert.Equal(t, OutputVector(0), out, "decode is not effective on the issuing tick")
	assert.False(t, g.ChannelEnabled(0), "enable must not change until the next tick's decode")
	assert.Equal(t, uint64(0), g.ChannelThreshold(0))

	// Tick 2: the decode of the tick-1 word takes effect, but the counters
	// for this tick ran on the old configuration so the output is still low.
	out = g.Tick(raw, false)
	assert.Equal(t, OutputVector(0), out, "counters lag configuration by one tick")
	assert.True(t, g.ChannelEnabled(0))
	assert.Equal(t, uint64(7<<4), g.ChannelThreshold(0))

	// Tick 3: counter wraps from all-set to 0, which is below the threshold.
	out = g.Tick(raw, false)
	assert.True(t, out.Bit(0), "output should assert once the counter starts its ramp")
	assert.Equal(t, uint64(0), g.ChannelCounter(0), "enable transition starts a fresh ramp at 0")
}

// TestTick_DutyCycleScenario is the N=5, W=8 scenario: duty code 7 yields a
// threshold of 112, so each 256-tick period is 112 ticks high then 144 low.
func TestTick_DutyCycleScenario(t *testing.T) {
	g, err := New(5, 8)
	require.NoError(t, err)

	raw := uint8(0b1_000_0111)

	out := g.Tick(raw, false)
	assert.Equal(t, "00000", out.Format(5), "tick 1: decode not yet effective")

	g.Tick(raw, false) // tick 2: configuration becomes effective

	// Ticks 3..258: one full counter period starting at counter 0.
	for period := 0; period < 2; period++ {
		high := 0
		firstLow := -1
		for i := 0; i < 256; i++ {
			out = g.Tick(raw, false)
			if out.Bit(0) {
				high++
				assert.Equal(t, -1, firstLow, "asserted ticks must form the initial contiguous block (period %d, tick %d)", period, i)
			} else if firstLow == -1 {
				firstLow = i
			}
			for ch := 1; ch < 5; ch++ {
				assert.False(t, out.Bit(ch), "unconfigured channel %d must stay low", ch)
			}
		}
		assert.Equal(t, 112, high, "period %d should be high for exactly duty<<4 ticks", period)
		assert.Equal(t, 112, firstLow, "period %d should go low exactly at the threshold", period)
	}
}

func TestTick_ZeroDutyIsAlwaysLow(t *testing.T) {
	g, err := New(2, 8)
	require.NoError(t, err)

	raw := word(true, 0, 0)
	for i := 0; i < 300; i++ {
		out := g.Tick(raw, false)
		assert.Equal(t, OutputVector(0), out, "duty code 0 must never assert (tick %d)", i)
	}
	assert.True(t, g.ChannelEnabled(0), "channel should still be enabled, just always low")
}

func TestTick_ChannelIsolation(t *testing.T) {
	g, err := New(4, 8)
	require.NoError(t, err)

	// Configure channel 2, let it run a few ticks.
	g.Tick(word(true, 2, 5), false)
	for i := 0; i < 10; i++ {
		g.Tick(word(true, 2, 5), false)
	}
	ctrBefore := g.ChannelCounter(2)

	// Reconfiguring channel 0 must not disturb channel 2 beyond its normal
	// counter advance.
	g.Tick(word(true, 0, 12), false)
	assert.True(t, g.ChannelEnabled(2))
	assert.Equal(t, uint64(5<<4), g.ChannelThreshold(2))
	assert.Equal(t, ctrBefore+1, g.ChannelCounter(2), "channel 2 counter should advance normally")

	assert.False(t, g.ChannelEnabled(3), "untouched channel stays disabled")
	assert.Equal(t, uint64(0xFF), g.ChannelCounter(3), "disabled channel stays pinned at all-set")
}

func TestTick_OutOfRangeSelectIsIgnored(t *testing.T) {
	g, err := New(5, 8)
	require.NoError(t, err)

	// Give channel 1 a configuration to make sure it survives.
	g.Tick(word(true, 1, 3), false)
	g.Tick(word(true, 1, 3), false)

	// Channel 6 does not exist with N=5; two ticks so the decode would have
	// landed if it were going to.
	g.Tick(word(true, 6, 15), false)
	g.Tick(word(true, 6, 15), false)

	for i := 0; i < 5; i++ {
		if i == 1 {
			assert.True(t, g.ChannelEnabled(1))
			assert.Equal(t, uint64(3<<4), g.ChannelThreshold(1))
			continue
		}
		assert.False(t, g.ChannelEnabled(i), "channel %d must be untouched by the dropped select", i)
		assert.Equal(t, uint64(0), g.ChannelThreshold(i))
	}
}

func TestTick_DisableRepinsCounter(t *testing.T) {
	g, err := New(2, 8)
	require.NoError(t, err)

	on := word(true, 0, 8)
	off := word(false, 0, 8)

	// Enable and run partway into a ramp.
	for i := 0; i < 50; i++ {
		g.Tick(on, false)
	}
	require.NotEqual(t, uint64(0xFF), g.ChannelCounter(0))

	// Disable: one tick to latch, one for the decode, then the counter pins
	// at all-set on every subsequent tick, not just at the transition.
	g.Tick(off, false)
	g.Tick(off, false)
	for i := 0; i < 5; i++ {
		out := g.Tick(off, false)
		assert.Equal(t, OutputVector(0), out)
		assert.Equal(t, uint64(0xFF), g.ChannelCounter(0), "disabled counter must be pinned every tick")
	}

	// Re-enable: the next active tick starts a fresh full-range ramp at 0.
	g.Tick(on, false)
	g.Tick(on, false)
	out := g.Tick(on, false)
	assert.Equal(t, uint64(0), g.ChannelCounter(0))
	assert.True(t, out.Bit(0))
}

func TestTick_CounterWraparound(t *testing.T) {
	g, err := New(1, 8)
	require.NoError(t, err)

	raw := word(true, 0, 15)
	g.Tick(raw, false)
	g.Tick(raw, false)

	// Duty 15 gives threshold 240: high for 240 of every 256 ticks, and the
	// wrap from 255 back to 0 is silent.
	high := 0
	for i := 0; i < 512; i++ {
		if g.Tick(raw, false).Bit(0) {
			high++
		}
	}
	assert.Equal(t, 480, high, "two full periods at duty 15")
	assert.Equal(t, uint64(511%256), g.ChannelCounter(0))
}

func TestTick_ResetWhileRunningThenResume(t *testing.T) {
	g, err := New(3, 8)
	require.NoError(t, err)

	raw := word(true, 0, 7)
	for i := 0; i < 100; i++ {
		g.Tick(raw, false)
	}

	g.Tick(raw, true)
	assert.False(t, g.ChannelEnabled(0))

	// The generator resumes with the same latency behaviour as from cold.
	g.Tick(raw, false)
	assert.False(t, g.ChannelEnabled(0), "latency applies after reset too")
	g.Tick(raw, false)
	assert.True(t, g.ChannelEnabled(0))
	out := g.Tick(raw, false)
	assert.True(t, out.Bit(0))
}

func TestGenerator_Accessors(t *testing.T) {
	g, err := New(4, 16)
	require.NoError(t, err)

	raw := word(true, 2, 9)
	g.Tick(raw, false)
	g.Tick(raw, false)

	assert.Equal(t, uint64(2), g.Ticks())
	assert.Equal(t, uint64(9)<<12, g.ChannelThreshold(2), "threshold scales with the counter width")
	assert.Equal(t, uint8(9), g.ChannelDuty(2))
	assert.Equal(t, ControlWord{Trigger: true, Channel: 2, Duty: 9}, g.LatchedWord())
	assert.Equal(t, uint64(0xFFFF), g.MaxCounter())

	assert.Panics(t, func() { g.ChannelEnabled(4) }, "out of range accessor index is a programmer error")
}

func TestGenerator_WideCounters(t *testing.T) {
	g, err := New(1, 64)
	require.NoError(t, err)

	assert.Equal(t, ^uint64(0), g.MaxCounter())

	raw := word(true, 0, 15)
	g.Tick(raw, false)
	g.Tick(raw, false)
	out := g.Tick(raw, false)

	assert.Equal(t, uint64(15)<<60, g.ChannelThreshold(0))
	assert.Equal(t, uint64(0), g.ChannelCounter(0))
	assert.True(t, out.Bit(0))
}
