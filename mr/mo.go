package mr

import (
	"log"

	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/sophie"
)

var (
	// end of map, an error returned by a Mapper/OnlyMapper.Map indicating a
	// stop of continuing mapping
	EOM = errors.New("EOM")
)

// OnlyMapper is an interface defining the map actions for MapOnlyJob
type OnlyMapper interface {
	// NewKey returns a new instance of key for reading from Source
	NewKey() sophie.Sophier
	// NewVal returns a new instance of value for reading from Source
	NewVal() sophie.Sophier
	// Make a map action for a key/val pair, collecting results to c.
	// NOTE the key-value pairs will be reused on next call to Map, so make a
	// deep copy if you want to save the contents.
	// If EOM is returned the mapping is stopped (as sucess).
	// If other non-nil error is returned, the job is aborted as failure.
	// @param c  the slice of Collectors. Same length as Dest.
	Map(key, val sophie.SophieWriter, c []sophie.Collector) error
	// Make a map action at final stage, collecting results to c
	// @param c  the slice of Collectors. Same length as Dest.
	MapEnd(c []sophie.Collector) error
}

// MapOnlyJob is a job with a mapping step only.
type MapOnlyJob struct {
	// The slice of Inputs
	Source []Input

	// The factory for OnlyMappers
	NewMapperF func(src, part int) OnlyMapper

	// The slice of Outputs. Part i of every Output receives the results of
	// the i-th partition over all Sources.
	Dest []Output

	// Workers limits the number of partitions mapped at the same time. Zero
	// means no limit.
	Workers int
}

func (job *MapOnlyJob) mapPart(src, part, totalPart int) (err error) {
	mapper := job.NewMapperF(src, part)
	key, val := mapper.NewKey(), mapper.NewVal()
	cs := make([]sophie.Collector, 0, len(job.Dest))
	for _, dst := range job.Dest {
		c, err := dst.Collector(totalPart)
		if err != nil {
			return errors.Wrapf(err, "open collector for source %d part %d failed", src, part)
		}
		defer func() {
			if e := c.Close(); e != nil && err == nil {
				err = errors.Wrapf(e, "close collector for source %d part %d failed", src, part)
			}
		}()
		cs = append(cs, c)
	}
	iter, err := job.Source[src].Iterator(part)
	if err != nil {
		return errors.Wrapf(err, "open source %d part %d failed", src, part)
	}
	defer iter.Close()

	for {
		if err := iter.Next(key, val); err != nil {
			if errors.Cause(err) != sophie.EOF {
				return errors.Wrap(err, "next failed")
			}
			break
		}
		if err := mapper.Map(key, val, cs); err != nil {
			if errors.Cause(err) == EOM {
				log.Print("EOM returned, exit early")
				break
			}
			return errors.Wrapf(err, "mapping %v %v failed", key, val)
		}
	}
	if err := mapper.MapEnd(cs); err != nil {
		return errors.Wrap(err, "map end failed")
	}
	return nil
}

// Runs the job.
// If some of the mapper failed, one of the error is returned.
func (job *MapOnlyJob) Run() error {
	if job.NewMapperF == nil {
		return errors.New("MapOnlyJob: NewMapperF undefined!")
	}
	if job.Source == nil {
		return errors.New("MapOnlyJob: Source undefined!")
	}
	partCounts := make([]int, len(job.Source))
	for i := range job.Source {
		partCount, err := job.Source[i].PartCount()
		if err != nil {
			return errors.Wrapf(err, "PartCount of source %d failed", i)
		}
		partCounts[i] = partCount
	}

	g := (&MrJob{Workers: job.Workers}).newGroup()
	totalPart := 0
	for i, partCount := range partCounts {
		for part := 0; part < partCount; part++ {
			i, part := i, part // per-iteration copies (go directive < 1.22)
			tp := totalPart
			g.Go(func() error {
				if err := job.mapPart(i, part, tp); err != nil {
					log.Printf("Error returned for source %d part %d: %v", i, part, err)
					return err
				}
				return nil
			})
			totalPart++
		}
	}
	return g.Wait()
}
