package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func TestTickReportsAtInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	core, logs := observer.New(zap.InfoLevel)
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second), WithLogger(zap.New(core)))

	for i := 0; i < 9; i++ {
		clock.t = clock.t.Add(100 * time.Millisecond)
		assert.False(t, p.Tick(FrameStats{Drawcalls: 4, Instances: 100, Objects: 10}))
	}
	clock.t = clock.t.Add(100 * time.Millisecond)
	require.True(t, p.Tick(FrameStats{Drawcalls: 4, Instances: 100, Objects: 10}))

	r := p.Last()
	assert.Equal(t, 10, r.Frames)
	assert.InDelta(t, 10.0, r.FPS, 1e-6)
	assert.Equal(t, 4, r.Drawcalls)
	assert.Equal(t, 100, r.Instances)
	assert.Equal(t, 10, r.Objects)

	require.Equal(t, 1, logs.FilterMessage("frame stats").Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(4), fields["drawcalls"])

	clock.t = clock.t.Add(10 * time.Millisecond)
	assert.False(t, p.Tick(FrameStats{}), "counters restart after a report")
}

func TestOptionsIgnoreInvalid(t *testing.T) {
	p := NewProfiler(WithInterval(0), WithLogger(nil), WithClock(nil))
	assert.Equal(t, time.Second, p.updateInterval)
	assert.NotNil(t, p.logger)
	assert.NotNil(t, p.now)
}
