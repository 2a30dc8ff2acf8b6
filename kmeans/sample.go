package kmeans

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/mr"
	"github.com/daviddengcn/mrkmeans/record"
)

// samplePositions draws k distinct positions from [0, n) and returns them
// in ascending order.
func samplePositions(n, k int, rnd *rand.Rand) ([]int, error) {
	if k <= 0 || k >= n {
		return nil, configErrorf("cannot sample %d centroids from %d rows", k, n)
	}
	chosen := make(map[int]bool, k)
	pos := make([]int, 0, k)
	for len(pos) < k {
		p := rnd.Intn(n)
		if chosen[p] {
			continue
		}
		chosen[p] = true
		pos = append(pos, p)
	}
	sort.Ints(pos)
	return pos, nil
}

// pickRows returns the records at the ascending row positions in a single
// forward scan.
func pickRows(ds *Dataset, pos []int) ([]record.Record, error) {
	recs := make([]record.Record, 0, len(pos))
	err := ds.ForEach(func(row int, r record.Record) error {
		if row != pos[len(recs)] {
			return nil
		}
		recs = append(recs, record.New(r.Features...))
		if len(recs) == len(pos) {
			return mr.EOM
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(recs) < len(pos) {
		return nil, errors.Errorf("row %d not found in %v", pos[len(recs)], ds.Records.Path)
	}
	return recs, nil
}

// SampleCentroids draws k distinct rows of ds uniformly as the initial
// centroids. Centroid i is the i-th chosen row in row order. k >= ds.Rows
// fails with an error caused by ErrConfiguration.
func SampleCentroids(ds *Dataset, k int, rnd *rand.Rand) ([]record.Record, error) {
	pos, err := samplePositions(ds.Rows, k, rnd)
	if err != nil {
		return nil, err
	}
	return pickRows(ds, pos)
}

// Reseed draws one row of ds uniformly as the replacement of an empty
// centroid.
func Reseed(ds *Dataset, rnd *rand.Rand) (record.Record, error) {
	recs, err := pickRows(ds, []int{rnd.Intn(ds.Rows)})
	if err != nil {
		return record.Record{}, err
	}
	return recs[0], nil
}
