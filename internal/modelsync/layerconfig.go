package modelsync

import "github.com/mesh-intelligence/strata/pkg/types"

// MergeConfig returns base overlaid with override. Override wins key by
// key, keys absent from override keep the base value, and nested objects
// merge recursively. Neither input is modified.
func MergeConfig(base, override types.LayerConfig) types.LayerConfig {
	out := base.Clone()
	if out == nil {
		out = types.LayerConfig{}
	}
	for k, v := range override {
		out[k] = mergeValue(out[k], v)
	}
	return out
}

func mergeValue(base, override any) any {
	bm, bok := asMap(base)
	om, ook := asMap(override)
	if !ook {
		return override
	}
	if !bok {
		return map[string]any(om.Clone())
	}
	return map[string]any(MergeConfig(bm, om))
}

func asMap(v any) (types.LayerConfig, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case types.LayerConfig:
		return m, true
	}
	return nil, false
}

// WithSyncMetadata returns config with metadata.sync set to record the
// connected system and direction an ingestion run used. Other metadata keys
// are preserved.
func WithSyncMetadata(config types.LayerConfig, system, direction string) types.LayerConfig {
	return MergeConfig(config, types.LayerConfig{
		types.ConfigKeyMetadata: map[string]any{
			"sync": map[string]any{
				"system":    system,
				"direction": direction,
			},
		},
	})
}
