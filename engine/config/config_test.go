package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "scene.toml", `
[render]
mid_distance = 20.0
low_distance = 60.0
compute_workers = 2

[logging]
level = "debug"
format = "json"

[profiler]
enabled = true
interval = "500ms"

[[queues]]
name = "main"
pass = "color"

[[queues]]
name = "sun near"
pass = "near_shadow"
shadow_level = 1
categories = ["normal", "single"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, float32(20), cfg.Render.MidDistance)
	assert.Equal(t, float32(60), cfg.Render.LowDistance)
	assert.Equal(t, 2, cfg.Render.ComputeWorkers)
	assert.True(t, cfg.Render.DoubleBuffering, "default kept")
	assert.Equal(t, 65536, cfg.Render.BatchVertices, "default kept")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Profiler.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Profiler.Interval)
	require.Len(t, cfg.Queues, 2)
	assert.Equal(t, "near_shadow", cfg.Queues[1].Pass)
	assert.Equal(t, 1, cfg.Queues[1].ShadowLevel)
	assert.Equal(t, []string{"normal", "single"}, cfg.Queues[1].Categories)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "scene.yaml", `
render:
  mid_distance: 10
  low_distance: 40
  double_buffering: false
shadow:
  enabled: true
  far_level: 4
queues:
  - name: main
    pass: color
    mid_distance: 5
    low_distance: 15
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, float32(10), cfg.Render.MidDistance)
	assert.False(t, cfg.Render.DoubleBuffering)
	assert.True(t, cfg.Shadow.Enabled)
	assert.Equal(t, 4, cfg.Shadow.FarLevel)
	assert.Equal(t, 1, cfg.Shadow.NearLevel, "default kept")
	require.Len(t, cfg.Queues, 1)
	assert.Equal(t, float32(15), cfg.Queues[0].LowDistance)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "scene.json", `{}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.toml", `[render`))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeFile(t, "bad.yml", "render:\n  mid_distance: 90\n  low_distance: 10\n"))
	assert.ErrorContains(t, err, "validate config")
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Render.ComputeWorkers = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Queues = []QueueConfig{{Name: "x", MidDistance: -1}}
	assert.ErrorContains(t, cfg.Validate(), "queues[0]")
}
