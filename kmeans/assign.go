package kmeans

import (
	"github.com/daviddengcn/mrkmeans/mr"
	"github.com/daviddengcn/mrkmeans/record"
	"github.com/daviddengcn/mrkmeans/sophie"
)

// Snapshot is an immutable centroid set published for one round.
type Snapshot struct {
	iteration int
	centroids []record.Record
}

// NewSnapshot copies centroids into a Snapshot for the given iteration.
func NewSnapshot(iteration int, centroids []record.Record) *Snapshot {
	s := &Snapshot{
		iteration: iteration,
		centroids: make([]record.Record, len(centroids)),
	}
	for i, c := range centroids {
		s.centroids[i] = record.New(c.Features...)
	}
	return s
}

// Iteration returns the round whose result the snapshot holds, 0 for the
// initial centroids.
func (s *Snapshot) Iteration() int {
	return s.iteration
}

func (s *Snapshot) K() int {
	return len(s.centroids)
}

func (s *Snapshot) Dim() int {
	if len(s.centroids) == 0 {
		return 0
	}
	return s.centroids[0].Dim()
}

// Centroids returns a copy of the centroids.
func (s *Snapshot) Centroids() []record.Record {
	cs := make([]record.Record, len(s.centroids))
	for i, c := range s.centroids {
		cs[i] = c.Copy()
	}
	return cs
}

// Nearest returns the index of the centroid closest to r. Ties go to the
// lowest index.
func (s *Snapshot) Nearest(r record.Record) int {
	best, bestDist := -1, 0.0
	for i, c := range s.centroids {
		if d := r.Distance(c); best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// NewAssigner returns the map stage of a round: every record is emitted
// under the index of its nearest centroid in snap, which is also the reduce
// partition. With trackProvenance the row index is attached to the emitted
// record.
func NewAssigner(snap *Snapshot, trackProvenance bool) mr.Mapper {
	return &mr.MapperStruct{
		NewKeyF: sophie.NewVInt,
		NewValF: record.NewSophier,
		MapF: func(key, val sophie.SophieWriter, c mr.PartCollector) error {
			row := int(*key.(*sophie.VInt))
			rec := val.(*record.Record)
			if rec.Dim() != snap.Dim() {
				return configErrorf("row %d has %d features, centroids have %d", row, rec.Dim(), snap.Dim())
			}
			idx := snap.Nearest(*rec)

			out := record.Record{Features: rec.Features, Count: rec.Count}
			if trackProvenance {
				out.Provenance = []int32{int32(row)}
			}
			return c.CollectTo(idx, sophie.Int32(idx), out)
		},
	}
}
