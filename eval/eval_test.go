package eval

import (
	"strings"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/golangplus/testing/assert"
)

func TestContingency(t *testing.T) {
	labels := []string{"b", "a", "b", "a", "c", "a"}
	clusters := []*roaring.Bitmap{
		roaring.BitmapOf(0, 2, 3),
		roaring.BitmapOf(1, 5),
		roaring.BitmapOf(4),
		roaring.New(),
	}
	m := Contingency(clusters, labels)
	assert.Equal(t, "Classes", m.Classes, []string{"b", "a", "c"})
	assert.Equal(t, "Counts", m.Counts, [][]int{
		{2, 1, 0},
		{0, 2, 0},
		{0, 0, 1},
		{0, 0, 0},
	})
	assert.Equal(t, "Total", m.Total(), 6)
	assert.Equal(t, "Purity", m.Purity(), 5.0/6)

	lines := strings.Split(strings.TrimSpace(m.String()), "\n")
	assert.Equal(t, "len(lines)", len(lines), 5)
	assert.Equal(t, "header", strings.Fields(lines[0]), []string{"cluster", "b", "a", "c"})
	assert.Equal(t, "row 0", strings.Fields(lines[1]), []string{"0", "2", "1", "0"})
}

func TestContingency_Unlabeled(t *testing.T) {
	m := Contingency([]*roaring.Bitmap{roaring.BitmapOf(0, 1), nil}, []string{"x"})
	assert.Equal(t, "Classes", m.Classes, []string{"x", ""})
	assert.Equal(t, "Counts", m.Counts, [][]int{{1, 1}, {0, 0}})
	assert.Equal(t, "Purity", m.Purity(), 0.5)

	empty := Contingency(nil, nil)
	assert.Equal(t, "Purity", empty.Purity(), 0.0)
	assert.Equal(t, "Total", empty.Total(), 0)
}
