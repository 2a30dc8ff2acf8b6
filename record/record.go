/*
Package record defines the data model of the clustering: a Record is a
feature vector folded from Count original rows, and a Cluster binds a
centroid Record to the records it owns.

Record implements sophie.Sophier so it can cross the shuffle boundary of an
mr job. The wire form is

	dim:int32 count:int32 dim*float64 [provlen:int32 provlen*int32]

all little-endian. The provenance block is written only when Provenance is
non-nil.
*/
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/daviddengcn/mrkmeans/sophie"
)

// MaxDim is the largest number of features a Record may have.
const MaxDim = 1 << 20

// Record is a feature vector plus aggregation state. Values passed
// downstream are never mutated in place; Add and Average return new Records.
type Record struct {
	Features []float64
	// Count is the number of original rows folded into Features.
	Count int
	// Provenance holds the row indices folded into this value. nil when
	// provenance is not tracked.
	Provenance []int32
}

// New returns a Record of count 1 with a copy of features.
func New(features ...float64) Record {
	return Record{
		Features: append([]float64(nil), features...),
		Count:    1,
	}
}

// NewSophier returns a new *Record as a sophie.Sophier. Used as the NewVal
// factory of mappers and reducers.
func NewSophier() sophie.Sophier {
	return new(Record)
}

// Parse converts numeric text fields into a Record of count 1.
func Parse(fields []string) (Record, error) {
	if len(fields) == 0 {
		return Record{}, errors.New("no feature fields")
	}
	if len(fields) > MaxDim {
		return Record{}, errors.Errorf("%d feature fields, at most %d allowed", len(fields), MaxDim)
	}
	features := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Record{}, errors.Wrapf(err, "field %d", i)
		}
		features[i] = v
	}
	return Record{Features: features, Count: 1}, nil
}

// ParseLine parses a comma-separated line of features.
func ParseLine(line string) (Record, error) {
	return Parse(strings.Split(line, ","))
}

func (r Record) Dim() int {
	return len(r.Features)
}

// Copy returns a deep copy of r.
func (r Record) Copy() Record {
	c := Record{
		Features: append([]float64(nil), r.Features...),
		Count:    r.Count,
	}
	if r.Provenance != nil {
		c.Provenance = append([]int32{}, r.Provenance...)
	}
	return c
}

func mustSameDim(a, b Record) {
	if len(a.Features) != len(b.Features) {
		panic(fmt.Sprintf("record: dimension mismatch: %d != %d", len(a.Features), len(b.Features)))
	}
}

// Distance returns the Euclidean distance between r and o. It panics if the
// dimensions differ.
func (r Record) Distance(o Record) float64 {
	mustSameDim(r, o)
	return floats.Distance(r.Features, o.Features, 2)
}

// Add returns the elementwise sum of r and o with counts summed and
// provenance concatenated, r's indices first. It panics if the dimensions
// differ.
func (r Record) Add(o Record) Record {
	mustSameDim(r, o)
	s := Record{
		Features: append([]float64(nil), r.Features...),
		Count:    r.Count + o.Count,
	}
	floats.Add(s.Features, o.Features)
	if r.Provenance != nil || o.Provenance != nil {
		s.Provenance = make([]int32, 0, len(r.Provenance)+len(o.Provenance))
		s.Provenance = append(append(s.Provenance, r.Provenance...), o.Provenance...)
	}
	return s
}

// Sum folds recs with Add. It panics if recs is empty.
func Sum(recs ...Record) Record {
	if len(recs) == 0 {
		panic("record: Sum of nothing")
	}
	s := recs[0].Copy()
	for _, r := range recs[1:] {
		s = s.Add(r)
	}
	return s
}

// Average divides every feature by Count and resets Count to 1.
// Provenance is kept.
func (r Record) Average() Record {
	a := r.Copy()
	if r.Count > 1 {
		floats.Scale(1/float64(r.Count), a.Features)
	}
	a.Count = 1
	return a
}

// String returns the features joined by commas.
func (r Record) String() string {
	var sb strings.Builder
	for i, f := range r.Features {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return sb.String()
}

// sophie.SophieWriter interface
func (r Record) WriteTo(w sophie.Writer) error {
	if err := sophie.Int32(len(r.Features)).WriteTo(w); err != nil {
		return err
	}
	if err := sophie.Int32(r.Count).WriteTo(w); err != nil {
		return err
	}
	for _, f := range r.Features {
		if err := sophie.Float64(f).WriteTo(w); err != nil {
			return err
		}
	}
	if r.Provenance == nil {
		return nil
	}
	return sophie.Int32Slice(r.Provenance).WriteTo(w)
}

// sophie.SophieReader interface. With l < 0 the provenance block is read if
// the stream has more bytes.
func (r *Record) ReadFrom(rd sophie.Reader, l int) error {
	var dim, count sophie.Int32
	if err := dim.ReadFrom(rd, 4); err != nil {
		return err
	}
	if err := count.ReadFrom(rd, 4); err != nil {
		return err
	}
	if dim < 0 || dim > MaxDim {
		return errors.Wrapf(sophie.ErrBadFormat, "dimension %d out of range [0, %d]", dim, MaxDim)
	}
	size := 8 + 8*int(dim)
	if l >= 0 && l < size {
		return errors.WithStack(sophie.ErrBadFormat)
	}
	if cap(r.Features) < int(dim) {
		r.Features = make([]float64, dim)
	}
	r.Features = r.Features[:dim]
	for i := range r.Features {
		var f sophie.Float64
		if err := f.ReadFrom(rd, 8); err != nil {
			return errors.Wrap(err, "reading features")
		}
		r.Features[i] = float64(f)
	}
	r.Count = int(count)

	r.Provenance = nil
	if l == size {
		return nil
	}
	var n sophie.Int32
	if err := n.ReadFrom(rd, 4); err != nil {
		if l < 0 && err == sophie.EOF {
			return nil
		}
		return err
	}
	if n < 0 || (l >= 0 && l != size+4+4*int(n)) {
		return errors.WithStack(sophie.ErrBadFormat)
	}
	// n is only trusted as far as the stream backs it.
	r.Provenance = make([]int32, 0, min(int(n), 1024))
	for i := 0; i < int(n); i++ {
		var v sophie.Int32
		if err := v.ReadFrom(rd, 4); err != nil {
			r.Provenance = nil
			return errors.Wrap(err, "reading provenance")
		}
		r.Provenance = append(r.Provenance, int32(v))
	}
	return nil
}
