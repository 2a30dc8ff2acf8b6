package kmeans

import (
	"math/rand"
	"testing"

	"github.com/golangplus/testing/assert"
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/record"
	"github.com/daviddengcn/mrkmeans/sophie"
)

func blobLines(n int) []string {
	centers := [][2]float64{{0, 0}, {10, 0}, {0, 10}}
	rnd := rand.New(rand.NewSource(1))
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c := centers[i%len(centers)]
		lines = append(lines, record.New(c[0]+rnd.Float64()*2-1, c[1]+rnd.Float64()*2-1).String())
	}
	return lines
}

func TestReference_MatchesController(t *testing.T) {
	cfg := DefaultConfig()
	cfg.K = 3
	cfg.Partitions = 3
	cfg.TrackProvenance = true
	cfg.AssignMembers = true

	ds, err := importLines(t, cfg, blobLines(60)...)
	assert.NoErrorOrDie(t, err)
	c, err := NewController(cfg, ds, sophie.LocalFsPath(t.TempDir()))
	assert.NoErrorOrDie(t, err)
	dist, err := c.Run()
	assert.NoErrorOrDie(t, err)

	rows, err := ds.ReadAll()
	assert.NoErrorOrDie(t, err)
	ref, err := Reference(cfg, rows)
	assert.NoErrorOrDie(t, err)

	assert.Equal(t, "State", dist.State, ref.State)
	assert.Equal(t, "Iterations", dist.Iterations, ref.Iterations)
	assertCentroids(t, dist.Centroids, ref.Centroids...)
	for i := range ref.Members {
		assert.Equal(t, "Members", dist.Members[i].ToArray(), ref.Members[i].ToArray())
		assert.Equal(t, "RoundMembers", dist.RoundMembers[i].ToArray(), ref.RoundMembers[i].ToArray())
	}
}

func TestReference_SixPoints(t *testing.T) {
	var rows []record.Record
	for _, line := range []string{"1,1", "1.1,1", "5,5", "5.1,5", "9,9", "9.2,9"} {
		r, err := record.ParseLine(line)
		assert.NoErrorOrDie(t, err)
		rows = append(rows, r)
	}
	res, err := Reference(sixPointsConfig(), rows)
	assert.NoErrorOrDie(t, err)
	assert.Equal(t, "State", res.State, StateConverged)
	assertSixPointClusters(t, res.Centroids, res.Members)
	for _, c := range res.Clusters {
		assert.Equal(t, "len(Members)", len(c.Members), 2)
	}
}

func TestReference_EmptyHold(t *testing.T) {
	var rows []record.Record
	for i := 0; i < 3; i++ {
		rows = append(rows, record.New(1, 1), record.New(9, 9))
	}
	cfg := sixPointsConfig()
	cfg.EmptyPolicy = EmptyHold
	res, err := Reference(cfg, rows)
	assert.NoErrorOrDie(t, err)
	// Duplicated centroids are held, so the first round converges.
	assert.Equal(t, "State", res.State, StateConverged)
	assert.Equal(t, "Iterations", res.Iterations, 1)
}

func TestReference_Errors(t *testing.T) {
	cfg := sixPointsConfig()
	_, err := Reference(cfg, []record.Record{record.New(1), record.New(2), record.New(3)})
	assert.True(t, "k >= n", errors.Is(err, ErrConfiguration))

	_, err = Reference(cfg, []record.Record{record.New(1), record.New(2), record.New(3), record.New(4, 5)})
	assert.True(t, "dimension", errors.Is(err, ErrConfiguration))

	cfg.DatasetSize = 5
	_, err = Reference(cfg, []record.Record{record.New(1), record.New(2), record.New(3), record.New(4)})
	assert.True(t, "dataset size", errors.Is(err, ErrConfiguration))
}
