package viz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6.0, cfg.FutureSeconds())
	assert.Equal(t, 5, cfg.HistoryPoints())
	assert.Equal(t, 10, cfg.NumModes)
	assert.Equal(t, 5, cfg.CounterfactualIndex)

	sel, err := cfg.Reference.Selector()
	require.NoError(t, err)
	assert.Equal(t, PositionalReference{Index: 7}, sel)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "viz.json", `{
		"horizon_frames": 8,
		"counterfactual": true,
		"reference": {"strategy": "nearest", "rank": 1}
	}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.HorizonFrames)
	assert.Equal(t, 4.0, cfg.FutureSeconds())
	assert.True(t, cfg.Counterfactual)
	assert.True(t, cfg.ShowPredictions)
	assert.Equal(t, "val", cfg.Split)

	sel, err := cfg.Reference.Selector()
	require.NoError(t, err)
	assert.Equal(t, NearestVehicleReference{Rank: 1}, sel)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"extension", "viz.yaml", `{}`},
		{"syntax", "viz.json", `{"num_modes": }`},
		{"modes", "viz.json", `{"num_modes": 0}`},
		{"strategy", "viz.json", `{"reference": {"strategy": "random"}}`},
		{"fixed", "viz.json", `{"reference": {"strategy": "fixed"}}`},
		{"picks", "viz.json", `{"instance_picks": [1, -2]}`},
		{"fps", "viz.json", `{"fps": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRenderOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HorizonFrames = 8
	opts := cfg.RenderOptions()
	assert.Equal(t, "2s past trajectory", opts.HistoryLabel)
	assert.Equal(t, "4s future ground truth trajectory", opts.FutureLabel)
	assert.Equal(t, cfg.Layers, opts.Layers)
	assert.Equal(t, 60, opts.DPI)
}
