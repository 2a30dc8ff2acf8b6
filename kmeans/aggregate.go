package kmeans

import (
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/mr"
	"github.com/daviddengcn/mrkmeans/record"
	"github.com/daviddengcn/mrkmeans/sophie"
)

// fold sums all values of one key. The values are reused by the iterator,
// so the first one is copied.
func fold(nextVal mr.SophierIterator) (sum record.Record, n int, err error) {
	for {
		val, err := nextVal()
		if err == sophie.EOF {
			return sum, n, nil
		}
		if err != nil {
			return sum, n, err
		}
		rec := val.(*record.Record)
		if n == 0 {
			sum = rec.Copy()
		} else {
			sum = sum.Add(*rec)
		}
		n++
	}
}

// NewLocalAggregator returns the combine stage: it sums the records one map
// partition emitted for a centroid without dividing.
func NewLocalAggregator() mr.Reducer {
	return &mr.ReducerStruct{
		NewKeyF: sophie.NewInt32,
		NewValF: record.NewSophier,
		ReduceF: func(key sophie.SophieWriter, nextVal mr.SophierIterator, c []sophie.Collector) error {
			sum, n, err := fold(nextVal)
			if err != nil || n == 0 {
				return err
			}
			return c[0].Collect(key, sum)
		},
	}
}

// NewGlobalAggregator returns the reduce stage: it sums every partial record
// of a centroid and emits the average as the new centroid to c[0]. The row
// indices folded into the centroid, if any, are emitted to c[1] as a
// sophie.Int32Slice.
func NewGlobalAggregator() mr.Reducer {
	return &mr.ReducerStruct{
		NewKeyF: sophie.NewInt32,
		NewValF: record.NewSophier,
		ReduceF: func(key sophie.SophieWriter, nextVal mr.SophierIterator, c []sophie.Collector) error {
			sum, n, err := fold(nextVal)
			if err != nil || n == 0 {
				return err
			}
			centroid := sum.Average()
			centroid.Provenance = nil
			if err := c[0].Collect(key, centroid); err != nil {
				return errors.Wrap(err, "collecting centroid")
			}
			if sum.Provenance == nil {
				return nil
			}
			return c[1].Collect(key, sophie.Int32Slice(sum.Provenance))
		},
	}
}
