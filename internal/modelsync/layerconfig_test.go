package modelsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func TestMergeConfig(t *testing.T) {
	base := types.LayerConfig{
		"position": map[string]any{"x": 1.0, "y": 2.0},
		"visible":  true,
		"plugin":   map[string]any{"color": "red"},
	}
	override := types.LayerConfig{
		"position": map[string]any{"x": 5.0},
		"visible":  false,
		"notes":    "added",
	}

	got := MergeConfig(base, override)

	assert.Equal(t, map[string]any{"x": 5.0, "y": 2.0}, got["position"], "nested objects merge")
	assert.Equal(t, false, got["visible"], "override wins")
	assert.Equal(t, map[string]any{"color": "red"}, got["plugin"], "unknown keys survive")
	assert.Equal(t, "added", got["notes"])

	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0}, base["position"], "base is not modified")
}

func TestMergeConfig_NilInputs(t *testing.T) {
	assert.Equal(t, types.LayerConfig{}, MergeConfig(nil, nil))
	assert.Equal(t, types.LayerConfig{"a": 1}, MergeConfig(nil, types.LayerConfig{"a": 1}))
	assert.Equal(t, types.LayerConfig{"a": 1}, MergeConfig(types.LayerConfig{"a": 1}, nil))
}

func TestMergeConfig_ScalarReplacedByObject(t *testing.T) {
	override := types.LayerConfig{"metadata": map[string]any{"k": "v"}}
	got := MergeConfig(types.LayerConfig{"metadata": "old"}, override)
	assert.Equal(t, map[string]any{"k": "v"}, got["metadata"])

	got["metadata"].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", override["metadata"].(map[string]any)["k"], "override is copied")
}

func TestWithSyncMetadata(t *testing.T) {
	cfg := types.LayerConfig{"metadata": map[string]any{"owner": "data-team"}, "visible": true}
	got := WithSyncMetadata(cfg, "postgres", "source")

	meta := got["metadata"].(map[string]any)
	assert.Equal(t, "data-team", meta["owner"])
	assert.Equal(t, map[string]any{"system": "postgres", "direction": "source"}, meta["sync"])
	assert.Equal(t, true, got["visible"])
}
