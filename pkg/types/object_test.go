package types

import "testing"

func TestObjectLineageID(t *testing.T) {
	o := &Object{ObjectID: "o1"}
	if got := o.LineageID(); got != "o1" {
		t.Errorf("LineageID() = %q, want o1", got)
	}
	o.OriginObjectID = "c1"
	if got := o.LineageID(); got != "c1" {
		t.Errorf("LineageID() = %q, want c1", got)
	}
}

func TestLayerConfigClone(t *testing.T) {
	orig := LayerConfig{
		ConfigKeyPosition: map[string]any{"x": 10.0, "y": 20.0},
		ConfigKeyVisible:  true,
		"tags":            []any{"a", "b"},
	}
	cp := orig.Clone()

	cp[ConfigKeyPosition].(map[string]any)["x"] = 99.0
	cp["tags"].([]any)[0] = "z"
	cp[ConfigKeyVisible] = false

	if orig[ConfigKeyPosition].(map[string]any)["x"] != 10.0 {
		t.Error("clone aliases nested map")
	}
	if orig["tags"].([]any)[0] != "a" {
		t.Error("clone aliases nested slice")
	}
	if orig[ConfigKeyVisible] != true {
		t.Error("clone aliases top-level value")
	}

	var nilCfg LayerConfig
	if nilCfg.Clone() != nil {
		t.Error("Clone of nil config must be nil")
	}
}
