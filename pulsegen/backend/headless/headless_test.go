package headless

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/go-pulsegen/pulsegen/backend"
	"github.com/halvard/go-pulsegen/pulsegen/debug"
	"github.com/halvard/go-pulsegen/pulsegen/input/action"
	"github.com/halvard/go-pulsegen/pulsegen/pwm"
)

func testTrace() *debug.Trace {
	tr := debug.NewTrace(2, 16)
	for i := 0; i < 8; i++ {
		tr.Push(pwm.OutputVector(uint8(i) & 0b11))
	}
	return tr
}

func TestBackend_QuitAfterTickBudget(t *testing.T) {
	b := New(100, SnapshotConfig{})
	require.NoError(t, b.Init(backend.Config{TicksPerUpdate: 40}))

	tr := testTrace()

	events, err := b.Update(tr)
	require.NoError(t, err)
	assert.Empty(t, events, "40 of 100 ticks: keep running")

	events, err = b.Update(tr)
	require.NoError(t, err)
	assert.Empty(t, events, "80 of 100 ticks: keep running")

	events, err = b.Update(tr)
	require.NoError(t, err)
	require.Len(t, events, 1, "budget exceeded: quit event expected")
	assert.Equal(t, action.RigQuit, events[0].Action)
}

func TestBackend_IntervalSnapshots(t *testing.T) {
	dir := t.TempDir()
	cfg, err := CreateSnapshotConfig(50, dir, "run")
	require.NoError(t, err)
	require.True(t, cfg.Enabled)

	b := New(100, cfg)
	require.NoError(t, b.Init(backend.Config{TicksPerUpdate: 50}))

	tr := testTrace()
	_, err = b.Update(tr)
	require.NoError(t, err)
	_, err = b.Update(tr)
	require.NoError(t, err)

	txt, err := filepath.Glob(filepath.Join(dir, "run_tick_*.txt"))
	require.NoError(t, err)
	assert.Len(t, txt, 2, "one text snapshot per 50-tick interval")

	png, err := filepath.Glob(filepath.Join(dir, "run_tick_*.png"))
	require.NoError(t, err)
	assert.Len(t, png, 2)
}

func TestCreateSnapshotConfig(t *testing.T) {
	cfg, err := CreateSnapshotConfig(0, "", "")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled, "zero interval disables snapshots")

	cfg, err = CreateSnapshotConfig(10, "", "")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.NotEmpty(t, cfg.Directory, "a temp directory is created when none is given")
	assert.Equal(t, "pulsegen", cfg.BaseName)
}
