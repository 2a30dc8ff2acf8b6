package kmeans

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/mr"
	"github.com/daviddengcn/mrkmeans/record"
	"github.com/daviddengcn/mrkmeans/sophie"
)

// State is the state of a Controller.
type State int

const (
	StateInit State = iota
	StateIterating
	StateConverged
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateIterating:
		return "ITERATING"
	case StateConverged:
		return "CONVERGED"
	case StateExhausted:
		return "EXHAUSTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is the outcome of a clustering run.
type Result struct {
	State      State
	Iterations int
	Centroids  []record.Record
	// Movements[i] is the largest centroid movement of round i+1.
	Movements []float64
	// Clusters with members, set when Config.AssignMembers is on.
	Clusters []*record.Cluster
	// Members[i] holds the rows of Clusters[i].
	Members []*roaring.Bitmap
	// RoundMembers holds the rows folded into each centroid by the last
	// round, set when Config.TrackProvenance is on. A repaired empty
	// cluster has an empty set.
	RoundMembers []*roaring.Bitmap
}

func iterName(iteration int) string {
	return fmt.Sprintf("iter-%03d", iteration)
}

// FileSorters returns a Controller.NewSorter spilling every round to its
// own folder under dir.
func FileSorters(dir sophie.FsPath) func(iteration int) mr.Sorter {
	return func(iteration int) mr.Sorter {
		return mr.NewFileSorter(dir.Join(fmt.Sprintf("tmp-%03d", iteration)))
	}
}

// Controller drives the rounds of a clustering run over a Dataset. Every
// round publishes a new immutable Snapshot; a failed round leaves the
// previous one in place.
type Controller struct {
	// NewSorter returns the Sorter of a round. nil sorts in memory.
	NewSorter func(iteration int) mr.Sorter
	// Logger defaults to log.Default().
	Logger *log.Logger

	cfg Config
	ds  *Dataset
	out sophie.FsPath
	rnd *rand.Rand

	state        State
	snap         *Snapshot
	movements    []float64
	roundMembers []*roaring.Bitmap
}

// NewController returns a Controller in StateInit writing centroid files
// under out.
func NewController(cfg Config, ds *Dataset, out sophie.FsPath) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.K >= ds.Rows {
		return nil, configErrorf("k (%d) must be less than the dataset size (%d)", cfg.K, ds.Rows)
	}
	return &Controller{
		cfg: cfg,
		ds:  ds,
		out: out,
		rnd: cfg.NewRand(),
	}, nil
}

func (c *Controller) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func (c *Controller) State() State {
	return c.state
}

// Snapshot returns the currently published centroids, nil before Init.
func (c *Controller) Snapshot() *Snapshot {
	return c.snap
}

// Init publishes the initial centroids. With nil initial, k rows are
// sampled from the dataset.
func (c *Controller) Init(initial []record.Record) error {
	if c.state != StateInit {
		return errors.Errorf("Init in state %v", c.state)
	}
	if initial == nil {
		var err error
		if initial, err = SampleCentroids(c.ds, c.cfg.K, c.rnd); err != nil {
			return err
		}
	}
	if len(initial) != c.cfg.K {
		return configErrorf("%d initial centroids for k = %d", len(initial), c.cfg.K)
	}
	for i, r := range initial {
		if r.Dim() != c.ds.Dim {
			return configErrorf("centroid %d has %d features, rows have %d", i, r.Dim(), c.ds.Dim)
		}
	}
	dir := c.out.Join(iterName(0))
	if err := dir.Remove(); err != nil {
		return errors.WithStack(err)
	}
	if err := WriteCentroids(dir, initial); err != nil {
		return err
	}
	c.snap = NewSnapshot(0, initial)
	c.state = StateIterating
	c.logger().Printf("Initialized %d centroids", c.cfg.K)
	return nil
}

// runRound runs the assign, combine and reduce stages of a round, writing
// the new centroids into dir.
func (c *Controller) runRound(iteration int, dir sophie.FsPath) (*memberSets, error) {
	if err := dir.Remove(); err != nil {
		return nil, errors.WithStack(err)
	}
	snap := c.snap
	dest := []mr.Output{CentroidDir(dir), mr.NullOutput}
	var members *memberSets
	if c.cfg.TrackProvenance {
		members = newMemberSets(c.cfg.K)
		dest[1] = members.Output()
	}
	var sorter mr.Sorter
	if c.NewSorter != nil {
		sorter = c.NewSorter(iteration)
	}
	job := mr.MrJob{
		Source: []mr.Input{c.ds.Input()},
		NewMapperF: func(src, part int) mr.Mapper {
			return NewAssigner(snap, c.cfg.TrackProvenance)
		},
		NewCombinerF: func(src, part int) mr.Reducer {
			return NewLocalAggregator()
		},
		NewReducerF: func(part int) mr.Reducer {
			return NewGlobalAggregator()
		},
		Sorter:  sorter,
		Dest:    dest,
		Workers: c.cfg.Workers,
	}
	err := job.Run()
	if cl, ok := sorter.(interface{ Clean() error }); ok {
		if e := cl.Clean(); e != nil {
			c.logger().Printf("Cleaning sorter of iteration %d failed: %v", iteration, e)
		}
	}
	return members, err
}

// repair fills the hole of cluster idx according to the EmptyPolicy.
func (c *Controller) repair(iteration, idx int) (record.Record, error) {
	e := &EmptyClusterError{Iteration: iteration, Cluster: idx}
	switch c.cfg.EmptyPolicy {
	case EmptyHold:
		c.logger().Printf("%v, holding the previous centroid", e)
		return c.snap.centroids[idx].Copy(), nil
	default:
		r, err := Reseed(c.ds, c.rnd)
		if err != nil {
			return record.Record{}, err
		}
		c.logger().Printf("%v, reseeded with %v", e, r)
		return r, nil
	}
}

// Step runs one round and publishes its centroids. The state moves to
// StateConverged if no centroid moved more than the threshold, or to
// StateExhausted if the iteration cap is reached. A failed round returns an
// *IterationError and changes nothing.
func (c *Controller) Step() error {
	if c.state != StateIterating {
		return errors.Errorf("Step in state %v", c.state)
	}
	iteration := c.snap.Iteration() + 1
	fail := func(err error) error {
		return &IterationError{Iteration: iteration, Err: err}
	}
	dir := c.out.Join(iterName(iteration))

	members, err := c.runRound(iteration, dir)
	if err != nil {
		return fail(err)
	}
	next, err := ReadCentroids(dir, c.cfg.K)
	if err != nil {
		return fail(err)
	}
	repaired := false
	for i := range next {
		if next[i].Features == nil {
			if next[i], err = c.repair(iteration, i); err != nil {
				return fail(err)
			}
			repaired = true
		}
		if next[i].Dim() != c.ds.Dim {
			return fail(errors.Wrapf(sophie.ErrBadFormat, "centroid %d has %d features", i, next[i].Dim()))
		}
	}
	if repaired {
		// Keep the persisted set dense.
		if err := dir.Remove(); err != nil {
			return fail(errors.WithStack(err))
		}
		if err := WriteCentroids(dir, next); err != nil {
			return fail(err)
		}
	}

	old := c.snap.centroids
	maxMove, converged := 0.0, true
	for i := range next {
		move := old[i].Distance(next[i])
		if move > maxMove {
			maxMove = move
		}
		if move > c.cfg.Threshold {
			converged = false
		}
	}

	c.snap = NewSnapshot(iteration, next)
	c.movements = append(c.movements, maxMove)
	if members != nil {
		c.roundMembers = members.sets
	}
	if !c.cfg.KeepIntermediate {
		if err := c.out.Join(iterName(iteration - 1)).Remove(); err != nil {
			c.logger().Printf("Removing %v failed: %v", iterName(iteration-1), err)
		}
	}
	c.logger().Printf("Iteration %d: max movement %g", iteration, maxMove)

	switch {
	case converged:
		c.state = StateConverged
	case iteration >= c.cfg.MaxIterations:
		c.state = StateExhausted
	}
	return nil
}

// Run initializes the centroids if needed, runs rounds until the state is
// terminal, writes the final centroids to FinalName under the output folder
// and, if configured, assigns the members.
func (c *Controller) Run() (*Result, error) {
	if c.state == StateInit {
		if err := c.Init(nil); err != nil {
			return nil, err
		}
	}
	for c.state == StateIterating {
		if err := c.Step(); err != nil {
			return nil, err
		}
	}

	res := &Result{
		State:        c.state,
		Iterations:   c.snap.Iteration(),
		Centroids:    c.snap.Centroids(),
		Movements:    append([]float64(nil), c.movements...),
		RoundMembers: c.roundMembers,
	}
	if err := WriteFinalCentroids(c.out.Join(FinalName), res.Centroids); err != nil {
		return nil, err
	}
	if !c.cfg.KeepIntermediate {
		if err := c.out.Join(iterName(res.Iterations)).Remove(); err != nil {
			c.logger().Printf("Removing %v failed: %v", iterName(res.Iterations), err)
		}
	}
	c.logger().Printf("%v after %d iteration(s)", res.State, res.Iterations)

	if c.cfg.AssignMembers {
		clusters, err := AssignMembers(c.ds, res.Centroids, c.cfg.Workers)
		if err != nil {
			return nil, err
		}
		res.Clusters = clusters
		res.Members = MemberSets(clusters)
	}
	return res, nil
}
