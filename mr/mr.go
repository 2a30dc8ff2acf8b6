/*
Package mr provides a local concurrent computing model (MapReduce) using Sophie
serialization.

A job that sums values per key, with a combiner pre-summing inside each map
partition before the shuffle, looks like this:

	sum := &ReducerStruct{
		NewKeyF: sophie.NewInt32,
		NewValF: sophie.NewVInt,
		ReduceF: func(key sophie.SophieWriter, nextVal SophierIterator,
			c []sophie.Collector) error {
			var total sophie.VInt
			for {
				val, err := nextVal()
				if err == sophie.EOF {
					break
				}
				if err != nil {
					return err
				}
				total += *val.(*sophie.VInt)
			}
			return c[0].Collect(key, total)
		},
	}

	job := MrJob{
		Source:       []Input{...},
		NewMapperF:   func(src, part int) Mapper { ... },
		NewCombinerF: func(src, part int) Reducer { return sum },
		NewReducerF:  func(part int) Reducer { return sum },
		Dest:         []Output{...},
	}

	if err := job.Run(); err != nil {
		log.Fatalf("job.Run failed: %v", err)
	}

One can also use MapOnlyJob for simple jobs.
*/
package mr

import (
	"log"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/daviddengcn/mrkmeans/sophie"
)

// The mapping stage in MrJob.
type Mapper interface {
	// NewKey returns a new instance of the key Sophier object.
	NewKey() sophie.Sophier
	// NewVal returns a new instance of the value Sophier object.
	NewVal() sophie.Sophier
	// Map converts the input kv pair to what the Reducer expect and send to
	// the PartCollector.
	Map(key, val sophie.SophieWriter, c PartCollector) error
	// MapEnd is invoked after a partition of the Input is mapped.
	MapEnd(c PartCollector) error
}

// An interator for fetching a list of Sophiers. If sophie.EOF is returned as
// the error, no further Sophiers are avaiable.
type SophierIterator func() (sophie.Sophier, error)

// The reducing stage in MrJob. A Reducer is also used as the combiner.
type Reducer interface {
	// NewKey returns a new instance of the key Sophier object for reducing.
	NewKey() sophie.Sophier
	// NewVal returns a new instance of the value Sophier object for reducing.
	NewVal() sophie.Sophier
	// to get all values:
	//   for {
	//	 	val, err := nextVal()
	//   	if err == sophie.EOF {
	//   		break;
	//   	}
	//      if err != nil {
	//   		return err;
	//   	}
	//      ...
	//   }
	// Values of a key are returned in the order they were collected.
	Reduce(key sophie.SophieWriter, nextVal SophierIterator,
		c []sophie.Collector) error
	// ReduceEnd is invoked after a partition of the reducing kv pairs is reduced.
	ReduceEnd(c []sophie.Collector) error
}

// An MrJob contains a mapping step and a reducing step. In reducing step, kv
// pairs are grouped by keys, and values of a key are reduced using the
// Reducer.
type MrJob struct {
	// The factory for Mappers
	NewMapperF func(src, part int) Mapper
	// The factory for combiners, optional. A combiner reduces the pairs
	// collected by one map partition before they reach the Sorter. Pairs
	// collected by the combiner go to the same reduce part. Results must not
	// depend on whether, or how many times, the combiner runs.
	NewCombinerF func(src, part int) Reducer
	// The factory for Reducers
	NewReducerF func(part int) Reducer

	// The Sorter that sorts kv pairs mapped by Mappers and provides
	// SophierIterator for Reducers.
	Sorter Sorter

	// The source Inputs
	Source []Input
	// The destination Outputs
	Dest []Output

	// Workers limits the number of partitions mapped or reduced at the same
	// time. Zero means no limit.
	Workers int
}

func (job *MrJob) newGroup() *errgroup.Group {
	g := new(errgroup.Group)
	if job.Workers > 0 {
		g.SetLimit(job.Workers)
	}
	return g
}

func (job *MrJob) mapPart(sorters Sorter, src, part, totalPart int) error {
	mapper := job.NewMapperF(src, part)

	// With a combiner, pairs go to a local sorter first and reach sorters
	// only after being combined.
	var (
		local *MemSorters
		c     PartCollector
		err   error
	)
	if job.NewCombinerF != nil {
		local = NewMemSorters()
		c, err = local.NewPartCollector(totalPart)
	} else {
		c, err = sorters.NewPartCollector(totalPart)
	}
	if err != nil {
		return err
	}

	key, val := mapper.NewKey(), mapper.NewVal()
	iter, err := job.Source[src].Iterator(part)
	if err != nil {
		return errors.Wrapf(err, "open source %d part %d failed", src, part)
	}
	defer iter.Close()

	for {
		if err := iter.Next(key, val); err != nil {
			if errors.Cause(err) == sophie.EOF {
				break
			}
			return errors.Wrapf(err, "reading source %d part %d failed", src, part)
		}

		if err := mapper.Map(key, val, c); err != nil {
			return err
		}
	}
	if err := mapper.MapEnd(c); err != nil {
		return err
	}
	if local == nil {
		return nil
	}

	out, err := sorters.NewPartCollector(totalPart)
	if err != nil {
		return err
	}
	return combine(job.NewCombinerF(src, part), local, out)
}

// combine reduces every part of local with combiner, forwarding the results
// to the same part of out.
func combine(combiner Reducer, local *MemSorters, out PartCollector) error {
	for _, part := range local.ReduceParts() {
		it, err := local.NewReduceIterator(part)
		if err != nil {
			return err
		}
		c := sophie.CollectorF(func(key, val sophie.SophieWriter) error {
			return out.CollectTo(part, key, val)
		})
		if err := it.Iterate([]sophie.Collector{c}, combiner); err != nil {
			return err
		}
	}
	return nil
}

func (job *MrJob) reducePart(sorters Sorter, part int) (err error) {
	it, err := sorters.NewReduceIterator(part)
	if err != nil {
		return err
	}
	cs := make([]sophie.Collector, 0, len(job.Dest))
	for _, dst := range job.Dest {
		c, err := dst.Collector(part)
		if err != nil {
			return err
		}
		defer func() {
			if e := c.Close(); e != nil && err == nil {
				err = errors.Wrapf(e, "closing collector of part %d failed", part)
			}
		}()
		cs = append(cs, c)
	}
	reducer := job.NewReducerF(part)
	return it.Iterate(cs, reducer)
}

// Runs the MrJob.
// If Sorter is not specified, MemSorters is used.
// All partitions are mapped before any partition is reduced.
func (job *MrJob) Run() error {
	if job.NewMapperF == nil {
		return errors.New("MrJob: NewMapperF undefined!")
	}
	if job.NewReducerF == nil {
		return errors.New("MrJob: NewReducerF undefined!")
	}
	if job.Source == nil {
		return errors.New("MrJob: Source undefined!")
	}

	/*
	 * Map
	 */
	sorters := job.Sorter
	if sorters == nil {
		log.Println("Sorter not specified, using MemSorters...")
		sorters = NewMemSorters()
	}

	partCounts := make([]int, len(job.Source))
	for i := range job.Source {
		partCount, err := job.Source[i].PartCount()
		if err != nil {
			return errors.Wrapf(err, "PartCount of source %d failed", i)
		}
		partCounts[i] = partCount
	}

	log.Println("Start mapping...")
	g := job.newGroup()
	totalPart := 0
	for i, partCount := range partCounts {
		for part := 0; part < partCount; part++ {
			i, part := i, part // per-iteration copies (go directive < 1.22)
			tp := totalPart
			g.Go(func() error {
				return job.mapPart(sorters, i, part, tp)
			})
			totalPart++
		}
	}
	mapErr := g.Wait()
	if err := sorters.ClosePartCollectors(); err != nil {
		if mapErr == nil {
			return err
		}
		log.Printf("sorters.ClosePartCollectors(): %v", err)
	}
	if mapErr != nil {
		return mapErr
	}
	log.Printf("Map ends, begin to reduce")

	/*
	 * Reduce
	 */
	g = job.newGroup()
	for _, part := range sorters.ReduceParts() {
		part := part // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			return job.reducePart(sorters, part)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("Reduce ends.")

	return nil
}
