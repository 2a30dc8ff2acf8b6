// Package eval compares final clusters with ground-truth labels.
package eval

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/RoaringBitmap/roaring"
)

// Matrix is a contingency matrix: Counts[i][j] is the number of rows of
// cluster i labeled Classes[j].
type Matrix struct {
	Classes []string
	Counts  [][]int
}

// Contingency builds the matrix of clusters, given as the row indices each
// cluster owns, against labels indexed by row. Classes are ordered by first
// appearance in labels. Rows out of the range of labels are counted under
// an empty label.
func Contingency(clusters []*roaring.Bitmap, labels []string) *Matrix {
	m := &Matrix{Counts: make([][]int, len(clusters))}
	classIdx := make(map[string]int)
	addClass := func(label string) int {
		idx, ok := classIdx[label]
		if !ok {
			idx = len(m.Classes)
			classIdx[label] = idx
			m.Classes = append(m.Classes, label)
		}
		return idx
	}
	for _, l := range labels {
		addClass(l)
	}

	for i, c := range clusters {
		var counts []int
		if c != nil {
			it := c.Iterator()
			for it.HasNext() {
				row := int(it.Next())
				label := ""
				if row < len(labels) {
					label = labels[row]
				}
				j := addClass(label)
				for len(counts) <= j {
					counts = append(counts, 0)
				}
				counts[j]++
			}
		}
		m.Counts[i] = counts
	}
	for i := range m.Counts {
		for len(m.Counts[i]) < len(m.Classes) {
			m.Counts[i] = append(m.Counts[i], 0)
		}
	}
	return m
}

// Total returns the number of rows in the matrix.
func (m *Matrix) Total() int {
	total := 0
	for _, row := range m.Counts {
		for _, n := range row {
			total += n
		}
	}
	return total
}

// Purity is the fraction of rows that belong to the majority class of their
// cluster. 0 for an empty matrix.
func (m *Matrix) Purity() float64 {
	total, majority := 0, 0
	for _, row := range m.Counts {
		best := 0
		for _, n := range row {
			total += n
			if n > best {
				best = n
			}
		}
		majority += best
	}
	if total == 0 {
		return 0
	}
	return float64(majority) / float64(total)
}

// String renders the matrix with one line per cluster.
func (m *Matrix) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "cluster\t")
	for _, c := range m.Classes {
		if c == "" {
			c = "-"
		}
		fmt.Fprintf(w, "%s\t", c)
	}
	fmt.Fprintln(w)
	for i, row := range m.Counts {
		fmt.Fprintf(w, "%d\t", i)
		for _, n := range row {
			fmt.Fprintf(w, "%d\t", n)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	return sb.String()
}
