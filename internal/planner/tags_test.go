package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropagateTags(t *testing.T) {
	tests := []struct {
		name     string
		explicit []string
		lineage  [][]string
		want     []string
	}{
		{"explicit wins", []string{"a"}, [][]string{{"b"}, {"c"}}, []string{"a"}},
		{"nearest ancestor", nil, [][]string{{"b"}, {"c"}}, []string{"b"}},
		{"skips empty parent", nil, [][]string{nil, {"c"}}, []string{"c"}},
		{"empty explicit falls through", []string{}, [][]string{{"b"}}, []string{"b"}},
		{"nothing", nil, [][]string{nil, nil}, nil},
		{"no lineage", nil, nil, nil},
		{"two levels only", nil, [][]string{nil, nil, {"deep"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PropagateTags(tt.explicit, tt.lineage...))
		})
	}
}

func TestPropagateTagsCopies(t *testing.T) {
	parent := []string{"outdoor"}
	got := PropagateTags(nil, parent)
	got[0] = "changed"
	assert.Equal(t, "outdoor", parent[0])
}
