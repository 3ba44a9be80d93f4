package classify

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopLabels(t *testing.T) {
	names := []string{"Eiffel Tower", "Colosseum", "Big Ben"}

	tests := []struct {
		name      string
		scores    []float32
		threshold float32
		max       int
		want      []Label
	}{
		{
			name:      "best above threshold",
			scores:    []float32{0.2, 0.7, 0.1},
			threshold: 0.5,
			max:       1,
			want:      []Label{{Name: "Colosseum", Confidence: 0.7}},
		},
		{
			name:      "nothing qualifies",
			scores:    []float32{0.3, 0.3, 0.4},
			threshold: 0.5,
			max:       1,
			want:      []Label{},
		},
		{
			name:      "sorted and truncated",
			scores:    []float32{0.6, 0.9, 0.8},
			threshold: 0.5,
			max:       2,
			want:      []Label{{Name: "Colosseum", Confidence: 0.9}, {Name: "Big Ben", Confidence: 0.8}},
		},
		{
			name:      "unnamed index",
			scores:    []float32{0, 0, 0, 0.95},
			threshold: 0.5,
			max:       0,
			want:      []Label{{Name: "class 3", Confidence: 0.95}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopLabels(tt.scores, names, tt.threshold, tt.max)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("TopLabels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLabelStrings(t *testing.T) {
	assert.Equal(t, []string{NoLandmark}, Strings(nil))
	assert.Equal(t, []string{"Colosseum (87.5%)"}, Strings([]Label{{Name: "Colosseum", Confidence: 0.875}}))
}

func TestReadLabels(t *testing.T) {
	names, err := ReadLabels(strings.NewReader("Eiffel Tower\n\n  Big Ben \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Eiffel Tower", "", "Big Ben"}, names)
}

func TestOpenMissingLabels(t *testing.T) {
	_, err := Open(NewParameters("model.onnx", "does-not-exist.txt"))
	assert.Error(t, err)
}
