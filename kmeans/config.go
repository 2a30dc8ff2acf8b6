package kmeans

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// SeedPolicy decides how the random generator used for sampling is seeded.
type SeedPolicy int

const (
	// SeedFixed seeds with Config.Seed. Runs over the same data with the
	// same config produce the same clusters.
	SeedFixed SeedPolicy = iota
	// SeedTime seeds with the current time.
	SeedTime
)

func (p SeedPolicy) String() string {
	switch p {
	case SeedFixed:
		return "fixed"
	case SeedTime:
		return "time"
	}
	return "unknown"
}

// EmptyPolicy decides how a centroid that received no points is repaired.
type EmptyPolicy int

const (
	// EmptyReseed replaces the centroid with a randomly drawn row.
	EmptyReseed EmptyPolicy = iota
	// EmptyHold keeps the centroid of the previous round.
	EmptyHold
)

func (p EmptyPolicy) String() string {
	switch p {
	case EmptyReseed:
		return "reseed"
	case EmptyHold:
		return "hold"
	}
	return "unknown"
}

// DefaultSeed is the seed used by DefaultConfig.
const DefaultSeed = 11

// Config holds the parameters of a clustering run.
type Config struct {
	// K is the number of clusters.
	K int
	// DatasetSize is the number of rows to cluster. 0 means all rows of the
	// input. A positive value larger than the input is an error.
	DatasetSize int
	// Threshold is the maximum movement of every centroid for a round to be
	// considered converged.
	Threshold float64
	// MaxIterations caps the number of rounds.
	MaxIterations int

	Seed        int64
	SeedPolicy  SeedPolicy
	EmptyPolicy EmptyPolicy

	// Partitions is the number of row ranges the input is split into.
	Partitions int
	// Workers limits the number of partitions processed at the same time.
	// 0 means one worker per partition.
	Workers int

	// TrackProvenance attaches row indices to partial sums, so the last
	// round also reports cluster membership.
	TrackProvenance bool
	// AssignMembers runs a final assignment pass over the final centroids.
	AssignMembers bool
	// KeepIntermediate keeps the per-iteration centroid folders.
	KeepIntermediate bool
	// LabelColumn treats a non-numeric last column as the ground-truth label.
	LabelColumn bool
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() Config {
	return Config{
		K:             3,
		Threshold:     1e-4,
		MaxIterations: 20,
		Seed:          DefaultSeed,
		SeedPolicy:    SeedFixed,
		EmptyPolicy:   EmptyReseed,
		Partitions:    4,
		LabelColumn:   true,
	}
}

// Validate checks the values that do not depend on the data.
func (cfg *Config) Validate() error {
	if cfg.K <= 0 {
		return configErrorf("k must be positive, got %d", cfg.K)
	}
	if cfg.DatasetSize < 0 {
		return configErrorf("negative dataset size %d", cfg.DatasetSize)
	}
	if cfg.DatasetSize > 0 && cfg.K >= cfg.DatasetSize {
		return configErrorf("k (%d) must be less than the dataset size (%d)", cfg.K, cfg.DatasetSize)
	}
	if cfg.Threshold < 0 {
		return configErrorf("negative threshold %v", cfg.Threshold)
	}
	if cfg.MaxIterations <= 0 {
		return configErrorf("max iterations must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.Partitions <= 0 {
		return configErrorf("partitions must be positive, got %d", cfg.Partitions)
	}
	if cfg.Workers < 0 {
		return configErrorf("negative workers %d", cfg.Workers)
	}
	switch cfg.SeedPolicy {
	case SeedFixed, SeedTime:
	default:
		return configErrorf("unknown seed policy %d", cfg.SeedPolicy)
	}
	switch cfg.EmptyPolicy {
	case EmptyReseed, EmptyHold:
	default:
		return configErrorf("unknown empty-cluster policy %d", cfg.EmptyPolicy)
	}
	return nil
}

// NewRand returns the random generator for sampling and reseeding.
func (cfg *Config) NewRand() *rand.Rand {
	seed := cfg.Seed
	if cfg.SeedPolicy == SeedTime {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
