package kmeans

import (
	"log"

	"github.com/RoaringBitmap/roaring"

	"github.com/daviddengcn/mrkmeans/record"
)

// Reference clusters rows in a single process with the same sampling,
// assignment, averaging, repair and convergence rules as a Controller, and
// without partitions or shuffling. With the same Config it draws the same
// random numbers, so on the same rows it ends with the same centroids up
// to floating-point summation order. Clusters and Members are always set.
func Reference(cfg Config, rows []record.Record) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := len(rows)
	if cfg.DatasetSize > n {
		return nil, configErrorf("dataset size %d larger than %d rows", cfg.DatasetSize, n)
	}
	if cfg.DatasetSize > 0 {
		rows, n = rows[:cfg.DatasetSize], cfg.DatasetSize
	}
	if cfg.K >= n {
		return nil, configErrorf("k (%d) must be less than the dataset size (%d)", cfg.K, n)
	}
	dim := rows[0].Dim()
	for i, r := range rows {
		if r.Dim() != dim {
			return nil, configErrorf("row %d has %d features, row 0 has %d", i, r.Dim(), dim)
		}
	}

	rnd := cfg.NewRand()
	pos, err := samplePositions(n, cfg.K, rnd)
	if err != nil {
		return nil, err
	}
	centroids := make([]record.Record, cfg.K)
	for i, p := range pos {
		centroids[i] = record.New(rows[p].Features...)
	}

	res := &Result{State: StateIterating}
	for res.State == StateIterating {
		iteration := res.Iterations + 1
		snap := NewSnapshot(iteration-1, centroids)

		sums := make([]record.Record, cfg.K)
		for row, r := range rows {
			p := record.Record{Features: r.Features, Count: 1}
			if cfg.TrackProvenance {
				p.Provenance = []int32{int32(row)}
			}
			idx := snap.Nearest(r)
			if sums[idx].Count == 0 {
				sums[idx] = p.Copy()
			} else {
				sums[idx] = sums[idx].Add(p)
			}
		}

		next := make([]record.Record, cfg.K)
		if cfg.TrackProvenance {
			res.RoundMembers = make([]*roaring.Bitmap, cfg.K)
		}
		maxMove, converged := 0.0, true
		for i, s := range sums {
			if cfg.TrackProvenance {
				res.RoundMembers[i] = roaring.New()
				for _, row := range s.Provenance {
					res.RoundMembers[i].Add(uint32(row))
				}
			}
			switch {
			case s.Count > 0:
				next[i] = s.Average()
				next[i].Provenance = nil
			case cfg.EmptyPolicy == EmptyHold:
				log.Printf("%v, holding the previous centroid", &EmptyClusterError{Iteration: iteration, Cluster: i})
				next[i] = centroids[i].Copy()
			default:
				next[i] = record.New(rows[rnd.Intn(n)].Features...)
				log.Printf("%v, reseeded with %v", &EmptyClusterError{Iteration: iteration, Cluster: i}, next[i])
			}
			move := centroids[i].Distance(next[i])
			if move > maxMove {
				maxMove = move
			}
			if move > cfg.Threshold {
				converged = false
			}
		}

		centroids = next
		res.Iterations = iteration
		res.Movements = append(res.Movements, maxMove)
		switch {
		case converged:
			res.State = StateConverged
		case iteration >= cfg.MaxIterations:
			res.State = StateExhausted
		}
	}
	res.Centroids = centroids

	snap := NewSnapshot(res.Iterations, centroids)
	res.Clusters = record.Clusters(centroids)
	for row, r := range rows {
		m := record.Record{Features: r.Features, Count: 1, Provenance: []int32{int32(row)}}
		res.Clusters[snap.Nearest(r)].AddMember(m)
	}
	res.Members = MemberSets(res.Clusters)
	return res, nil
}
