package kmeans

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/mr"
	"github.com/daviddengcn/mrkmeans/record"
	"github.com/daviddengcn/mrkmeans/sophie"
)

// memberSets gathers the row indices of every cluster from sophie.Int32Slice
// values keyed by cluster index.
type memberSets struct {
	sync.Mutex
	sets []*roaring.Bitmap
}

func newMemberSets(k int) *memberSets {
	ms := &memberSets{sets: make([]*roaring.Bitmap, k)}
	for i := range ms.sets {
		ms.sets[i] = roaring.New()
	}
	return ms
}

func (ms *memberSets) Output() mr.Output {
	return &mr.OutputStruct{CollectorF: ms.collector}
}

func (ms *memberSets) collector(int) (sophie.CollectCloser, error) {
	return &sophie.CollectCloserStruct{
		CollectF: func(key, val sophie.SophieWriter) error {
			idx, err := intKey(key)
			if err != nil {
				return err
			}
			rows, ok := val.(sophie.Int32Slice)
			if !ok {
				return errors.Errorf("unexpected member value type %T", val)
			}
			ms.Lock()
			defer ms.Unlock()
			if idx < 0 || idx >= len(ms.sets) {
				return errors.Errorf("cluster %d out of range [0, %d)", idx, len(ms.sets))
			}
			for _, row := range rows {
				ms.sets[idx].Add(uint32(row))
			}
			return nil
		},
	}, nil
}

// clusterSink adds every collected record to the cluster of its key.
type clusterSink struct {
	sync.Mutex
	clusters []*record.Cluster
}

func (cs *clusterSink) Output() mr.Output {
	return &mr.OutputStruct{CollectorF: cs.collector}
}

func (cs *clusterSink) collector(int) (sophie.CollectCloser, error) {
	return &sophie.CollectCloserStruct{
		CollectF: func(key, val sophie.SophieWriter) error {
			idx, err := intKey(key)
			if err != nil {
				return err
			}
			rec, err := recordVal(val)
			if err != nil {
				return err
			}
			cs.Lock()
			defer cs.Unlock()
			cs.clusters[idx].AddMember(rec)
			return nil
		},
	}, nil
}

// AssignMembers assigns every row of ds to its nearest centroid once, with
// no aggregation, and returns the clusters with their members in row order.
// Each member carries its row index as provenance.
func AssignMembers(ds *Dataset, centroids []record.Record, workers int) ([]*record.Cluster, error) {
	snap := NewSnapshot(0, centroids)
	sink := &clusterSink{clusters: record.Clusters(snap.Centroids())}
	job := mr.MapOnlyJob{
		Source: []mr.Input{ds.Input()},
		NewMapperF: func(src, part int) mr.OnlyMapper {
			return &mr.OnlyMapperStruct{
				NewKeyF: sophie.NewVInt,
				NewValF: record.NewSophier,
				MapF: func(key, val sophie.SophieWriter, c []sophie.Collector) error {
					row := int(*key.(*sophie.VInt))
					rec := val.(*record.Record)
					if rec.Dim() != snap.Dim() {
						return configErrorf("row %d has %d features, centroids have %d", row, rec.Dim(), snap.Dim())
					}
					m := record.Record{
						Features:   rec.Features,
						Count:      rec.Count,
						Provenance: []int32{int32(row)},
					}
					return c[0].Collect(sophie.Int32(snap.Nearest(*rec)), m)
				},
			}
		},
		Dest:    []mr.Output{sink.Output()},
		Workers: workers,
	}
	if err := job.Run(); err != nil {
		return nil, err
	}
	for _, c := range sink.clusters {
		sort.Slice(c.Members, func(i, j int) bool {
			return c.Members[i].Provenance[0] < c.Members[j].Provenance[0]
		})
	}
	return sink.clusters, nil
}

// MemberSets returns the row indices owned by every cluster.
func MemberSets(clusters []*record.Cluster) []*roaring.Bitmap {
	sets := make([]*roaring.Bitmap, len(clusters))
	for i, c := range clusters {
		sets[i] = c.MemberIndices()
	}
	return sets
}
