package kmeans

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is the cause of errors detected before any round
	// runs: invalid parameters, non-numeric fields, dimension mismatches.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEmptyCluster marks a centroid that received no points in a round.
	ErrEmptyCluster = errors.New("empty cluster")
	// ErrPartitionIO marks a round failed by the storage or the runtime.
	ErrPartitionIO = errors.New("partition I/O failed")
)

// IterationError reports a round that failed as a whole. The published
// centroids are those of the previous round.
type IterationError struct {
	Iteration int
	Err       error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("iteration %d failed: %v", e.Iteration, e.Err)
}

func (e *IterationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPartitionIO) hold for every failed round that
// is not caused by a configuration error.
func (e *IterationError) Is(target error) bool {
	return target == ErrPartitionIO && !errors.Is(e.Err, ErrConfiguration)
}

// EmptyClusterError describes a centroid that received no points.
type EmptyClusterError struct {
	Iteration int
	Cluster   int
}

func (e *EmptyClusterError) Error() string {
	return fmt.Sprintf("iteration %d: cluster %d: %v", e.Iteration, e.Cluster, ErrEmptyCluster)
}

func (e *EmptyClusterError) Unwrap() error {
	return ErrEmptyCluster
}
