package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	base := map[string]any{
		"image": "demo:latest",
		"env": map[string]any{
			"LOG_LEVEL": "info",
			"REGION":    "us-east-1",
		},
		"tags":         []any{"staging"},
		"pip_packages": []any{"requests"},
	}
	overlay := map[string]any{
		"env": map[string]any{
			"LOG_LEVEL": "debug",
		},
		"tags":         []any{"staging", "etl"},
		"pip_packages": []any{"pandas"},
		"cpu":          2,
	}

	merged := DeepMerge(base, overlay)

	// Maps merge recursively.
	env := merged["env"].(map[string]any)
	assert.Equal(t, "debug", env["LOG_LEVEL"])
	assert.Equal(t, "us-east-1", env["REGION"])

	// Tag lists union, other lists replace.
	assert.Equal(t, []any{"staging", "etl"}, merged["tags"])
	assert.Equal(t, []any{"pandas"}, merged["pip_packages"])

	// New keys land, untouched keys survive.
	assert.Equal(t, 2, merged["cpu"])
	assert.Equal(t, "demo:latest", merged["image"])

	// Inputs are not mutated.
	assert.Equal(t, "info", base["env"].(map[string]any)["LOG_LEVEL"])
	assert.NotContains(t, base, "cpu")
}

func TestDeepMergeNilBase(t *testing.T) {
	merged := DeepMerge(nil, map[string]any{"a": 1})
	assert.Equal(t, map[string]any{"a": 1}, merged)
}

func TestMergeTags(t *testing.T) {
	tests := []struct {
		name    string
		base    []string
		overlay []string
		want    []string
	}{
		{
			name:    "disjoint",
			base:    []string{"a"},
			overlay: []string{"b"},
			want:    []string{"a", "b"},
		},
		{
			name:    "duplicates collapse",
			base:    []string{"a", "b"},
			overlay: []string{"b", "c"},
			want:    []string{"a", "b", "c"},
		},
		{
			name:    "both empty",
			base:    nil,
			overlay: nil,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeTags(tt.base, tt.overlay))
		})
	}
}
