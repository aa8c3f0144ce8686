package types

import (
	"errors"
	"testing"
)

func TestParseLayer(t *testing.T) {
	tests := []struct {
		in      string
		want    Layer
		wantErr error
	}{
		{"conceptual", LayerConceptual, nil},
		{"logical", LayerLogical, nil},
		{"physical", LayerPhysical, nil},
		{"", "", ErrInvalidLayer},
		{"Physical", "", ErrInvalidLayer},
	}
	for _, tt := range tests {
		got, err := ParseLayer(tt.in)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ParseLayer(%q) error = %v, want %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLayer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLayerRank(t *testing.T) {
	if !(LayerConceptual.Rank() < LayerLogical.Rank() && LayerLogical.Rank() < LayerPhysical.Rank()) {
		t.Fatal("layers must rank conceptual < logical < physical")
	}
	if Layer("other").Rank() <= LayerPhysical.Rank() {
		t.Error("unknown layers must rank after physical")
	}
}

func TestModelValidate(t *testing.T) {
	tests := []struct {
		name    string
		model   Model
		wantErr error
	}{
		{"valid conceptual", Model{Name: "Sales", Layer: LayerConceptual}, nil},
		{"missing name", Model{Layer: LayerLogical}, ErrInvalidName},
		{"bad layer", Model{Name: "Sales", Layer: "raw"}, ErrInvalidLayer},
		{"self parent", Model{ModelID: "m1", Name: "Sales", Layer: LayerLogical, ParentModelID: "m1"}, ErrInvalidParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.model.Validate(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
