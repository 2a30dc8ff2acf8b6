package mr

import (
	"fmt"
	"testing"

	"github.com/golangplus/testing/assert"

	"github.com/daviddengcn/mrkmeans/sophie"
)

func checkSorter(t *testing.T, s Sorter) {
	var cs [3]PartCollector
	for i := range cs {
		var err error
		cs[i], err = s.NewPartCollector(i)
		assert.NoError(t, err)
	}
	inData := [][]int{
		{0, 1, 6, 6},
		{1, 3, 1},
		{2, 2, 3, 6},
	}
	outData := [...][]string{
		0: {"0", "3", "3", "6", "6", "6"},
		1: {"1", "1", "1"},
		2: {"2", "2"},
	}
	for i, list := range inData {
		for _, v := range list {
			assert.NoError(t, cs[i].CollectTo(v%3, sophie.VInt(v), sophie.String(fmt.Sprint(v))))
		}
	}
	assert.NoError(t, s.ClosePartCollectors())
	parts := s.ReduceParts()
	assert.Equal(t, "parts", parts, []int{0, 1, 2})
	for _, part := range parts {
		it, err := s.NewReduceIterator(part)
		if !assert.NoError(t, err) {
			return
		}
		ReduceEndFCalled := false
		outVls := make([]string, 0)
		assert.NoError(t, it.Iterate([]sophie.Collector{
			sophie.CollectorF(func(key, val sophie.SophieWriter) error {
				assert.Equal(t, "val", val.(*sophie.String).Val(), key.(*sophie.VInt).String())
				outVls = append(outVls, val.(*sophie.String).Val())
				return nil
			}),
		}, &ReducerStruct{
			NewKeyF: sophie.NewVInt,
			NewValF: sophie.NewString,
			ReduceF: func(key sophie.SophieWriter, nextVal SophierIterator, c []sophie.Collector) error {
				assert.Equal(t, "len(c)", len(c), 1)
				for {
					val, err := nextVal()
					if err == sophie.EOF {
						break
					}
					if err != nil {
						t.Errorf("nextVal() failed: %v", err)
						return err
					}
					if err := c[0].Collect(key, val); err != nil {
						return err
					}
				}
				return nil
			},
			ReduceEndF: func(c []sophie.Collector) error {
				ReduceEndFCalled = true
				assert.Equal(t, "len(c)", len(c), 1)
				return nil
			},
		}))
		assert.Should(t, ReduceEndFCalled, "ReduceEndF not called!")
		assert.Equal(t, "outVls", outVls, outData[part])
	}
}

func TestMemSorter(t *testing.T) {
	s := NewMemSorters()
	checkSorter(t, s)
}

func TestFileSorter(t *testing.T) {
	fpRoot := sophie.LocalFsPath(t.TempDir())
	s := NewFileSorter(fpRoot.Join("tmp"))
	checkSorter(t, s)
	assert.NoError(t, s.Clean())
	_, err := fpRoot.Join("tmp").Stat()
	assert.Error(t, err)
}

// Values of equal keys come out in the order they were collected.
func checkStable(t *testing.T, s Sorter) {
	c, err := s.NewPartCollector(0)
	assert.NoErrorOrDie(t, err)
	keys := []int{5, 1, 5, 1, 5, 0, 1}
	for i, k := range keys {
		assert.NoError(t, c.CollectTo(0, sophie.VInt(k), sophie.VInt(i)))
	}
	assert.NoError(t, s.ClosePartCollectors())

	it, err := s.NewReduceIterator(0)
	assert.NoErrorOrDie(t, err)
	got := make(map[int][]int)
	assert.NoError(t, it.Iterate(nil, &ReducerStruct{
		NewKeyF: sophie.NewVInt,
		NewValF: sophie.NewVInt,
		ReduceF: func(key sophie.SophieWriter, nextVal SophierIterator, c []sophie.Collector) error {
			k := int(*key.(*sophie.VInt))
			for {
				val, err := nextVal()
				if err == sophie.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				got[k] = append(got[k], int(*val.(*sophie.VInt)))
			}
		},
	}))
	assert.Equal(t, "got", got, map[int][]int{
		0: {5},
		1: {1, 3, 6},
		5: {0, 2, 4},
	})
}

func TestMemSorter_Stable(t *testing.T) {
	checkStable(t, NewMemSorters())
}

func TestFileSorter_Stable(t *testing.T) {
	checkStable(t, NewFileSorter(sophie.LocalFsPath(t.TempDir()).Join("tmp")))
}

func TestSorter_UnknownPart(t *testing.T) {
	_, err := NewMemSorters().NewReduceIterator(3)
	assert.Error(t, err)

	_, err = NewFileSorter(sophie.LocalFsPath(t.TempDir())).NewReduceIterator(3)
	assert.Error(t, err)
}
