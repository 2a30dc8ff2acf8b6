package record

import (
	"math"
	"testing"

	"github.com/golangplus/bytes"
	"github.com/golangplus/testing/assert"
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/sophie"
)

func TestDistance(t *testing.T) {
	a, b := New(1, 1), New(4, 5)
	assert.Equal(t, "d(a, b)", a.Distance(b), 5.0)
	assert.Equal(t, "d(b, a)", b.Distance(a), a.Distance(b))
	assert.Equal(t, "d(a, a)", a.Distance(a), 0.0)

	assert.Panic(t, "dim mismatch", func() {
		a.Distance(New(1, 2, 3))
	})
}

func TestAdd(t *testing.T) {
	a := Record{Features: []float64{1, 2}, Count: 1, Provenance: []int32{0}}
	b := Record{Features: []float64{3, 4}, Count: 2, Provenance: []int32{5, 6}}
	c := Record{Features: []float64{0.5, 0.25}, Count: 3, Provenance: []int32{9}}

	s := a.Add(b)
	assert.Equal(t, "s", s, Record{Features: []float64{4, 6}, Count: 3, Provenance: []int32{0, 5, 6}})
	// operands untouched
	assert.Equal(t, "a", a, Record{Features: []float64{1, 2}, Count: 1, Provenance: []int32{0}})

	left, right := a.Add(b).Add(c), a.Add(b.Add(c))
	assert.Equal(t, "left.Count", left.Count, 6)
	assert.Equal(t, "right.Count", right.Count, 6)
	for i := range left.Features {
		assert.True(t, "close", math.Abs(left.Features[i]-right.Features[i]) < 1e-12)
	}
	assert.Equal(t, "provenance", left.Provenance, right.Provenance)
	assert.Equal(t, "Sum", Sum(a, b, c), left)

	noProv := New(1, 1).Add(New(2, 2))
	assert.True(t, "nil provenance", noProv.Provenance == nil)

	assert.Panic(t, "dim mismatch", func() {
		a.Add(New(1))
	})
}

func TestAverage(t *testing.T) {
	s := Record{Features: []float64{4, 6}, Count: 4}
	assert.Equal(t, "avg", s.Average(), Record{Features: []float64{1, 1.5}, Count: 1})
	assert.Equal(t, "s", s.Count, 4)

	one := New(3, 7)
	assert.Equal(t, "identity", one.Average(), one)
}

func TestParse(t *testing.T) {
	r, err := ParseLine("1.5, 2,-3e2")
	assert.NoError(t, err)
	assert.Equal(t, "r", r, New(1.5, 2, -300))
	assert.Equal(t, "String", r.String(), "1.5,2,-300")

	_, err = ParseLine("1.5,abc")
	assert.Error(t, err)
	_, err = Parse(nil)
	assert.Error(t, err)
}

func TestWire(t *testing.T) {
	org := Record{
		Features:   []float64{1.25, -3, 1e-7},
		Count:      3,
		Provenance: []int32{3, 7, 12},
	}
	var buf bytesp.Slice
	assert.NoError(t, org.WriteTo(&buf))
	assert.Equal(t, "len(buf)", len(buf), 8+3*8+4+3*4)
	encoded := append([]byte(nil), buf...)

	var got Record
	assert.NoError(t, got.ReadFrom(&buf, len(encoded)))
	assert.Equal(t, "got", got, org)
	assert.Equal(t, "len(buf)", len(buf), 0)

	var again bytesp.Slice
	assert.NoError(t, got.WriteTo(&again))
	assert.Equal(t, "re-encoded", []byte(again), encoded)

	// unknown length
	buf = bytesp.Slice(append([]byte(nil), encoded...))
	var got2 Record
	assert.NoError(t, got2.ReadFrom(&buf, -1))
	assert.Equal(t, "got2", got2, org)
}

func TestWire_NoProvenance(t *testing.T) {
	org := New(5, 5)
	org.Count = 2
	var buf bytesp.Slice
	assert.NoError(t, org.WriteTo(&buf))
	assert.Equal(t, "len(buf)", len(buf), 8+2*8)

	// A reused record drops stale provenance.
	got := Record{Provenance: []int32{1}}
	assert.NoError(t, got.ReadFrom(&buf, 8+2*8))
	assert.Equal(t, "got", got, org)
}

func TestWire_EmptyProvenance(t *testing.T) {
	org := Record{Features: []float64{1}, Count: 1, Provenance: []int32{}}
	var buf bytesp.Slice
	assert.NoError(t, org.WriteTo(&buf))
	encoded := append([]byte(nil), buf...)

	var got Record
	assert.NoError(t, got.ReadFrom(&buf, len(encoded)))
	var again bytesp.Slice
	assert.NoError(t, got.WriteTo(&again))
	assert.Equal(t, "re-encoded", []byte(again), encoded)
}

func TestWire_BadLength(t *testing.T) {
	org := Record{Features: []float64{1, 2}, Count: 1, Provenance: []int32{4}}
	var buf bytesp.Slice
	assert.NoError(t, org.WriteTo(&buf))
	n := len(buf)

	var got Record
	assert.Error(t, got.ReadFrom(&buf, n+4))

	var short bytesp.Slice
	assert.NoError(t, sophie.Int32(2).WriteTo(&short))
	assert.NoError(t, sophie.Int32(1).WriteTo(&short))
	assert.Error(t, got.ReadFrom(&short, 8))
}

func TestWire_DimOutOfRange(t *testing.T) {
	for _, dim := range []int32{-1, MaxDim + 1, math.MaxInt32} {
		var buf bytesp.Slice
		assert.NoError(t, sophie.Int32(dim).WriteTo(&buf))
		assert.NoError(t, sophie.Int32(1).WriteTo(&buf))

		var got Record
		err := got.ReadFrom(&buf, -1)
		assert.True(t, "ErrBadFormat", errors.Is(err, sophie.ErrBadFormat))
		assert.Equal(t, "cap(Features)", cap(got.Features), 0)
	}
}

func TestWire_ProvenanceTruncated(t *testing.T) {
	var buf bytesp.Slice
	assert.NoError(t, New(1).WriteTo(&buf))
	// claims a huge provenance block backed by a single index
	assert.NoError(t, sophie.Int32(math.MaxInt32).WriteTo(&buf))
	assert.NoError(t, sophie.Int32(3).WriteTo(&buf))

	var got Record
	assert.Error(t, got.ReadFrom(&buf, -1))
	assert.True(t, "Provenance == nil", got.Provenance == nil)
}

func TestParse_TooManyFields(t *testing.T) {
	_, err := Parse(make([]string, MaxDim+1))
	assert.Error(t, err)
}

func TestCluster(t *testing.T) {
	cs := Clusters([]Record{New(0, 0), New(1, 1)})
	assert.Equal(t, "len(cs)", len(cs), 2)
	assert.Equal(t, "cs[1].Index", cs[1].Index, 1)

	m := New(0.5, 0.5)
	m.Provenance = []int32{42}
	cs[0].AddMember(m)
	cs[0].AddMember(Record{Features: []float64{1, 1}, Count: 2, Provenance: []int32{7, 3}})
	m.Provenance[0] = 1
	assert.Equal(t, "members", cs[0].MemberIndices().ToArray(), []uint32{3, 7, 42})

	cs[0].ClearMembers()
	assert.Equal(t, "cleared", len(cs[0].Members), 0)
	assert.True(t, "empty", cs[0].MemberIndices().IsEmpty())
}
