/*
Package sophie defines the serialization and file-system layer shared by the
kv spill files and the mr runtime.

Every value crossing a partition boundary implements Sophier: WriteTo
appends the binary form to a Writer, ReadFrom decodes it back. ReadFrom
receives the number of bytes the value occupies when the container knows it
(kv files always do), or -1 otherwise.
*/
package sophie

import (
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

var (
	// EOF is returned by iterators when no more kv pairs are available.
	EOF = io.EOF
	// ErrBadFormat is returned when serialized data is corrupted.
	ErrBadFormat = errors.New("bad sophie format")
)

type Reader interface {
	io.Reader
	io.ByteReader
}

type ReadCloser interface {
	Reader
	io.Closer
	// Skip skips n bytes and returns the number of bytes actually skipped.
	Skip(n int64) (int64, error)
}

type Writer interface {
	io.Writer
	io.ByteWriter
}

type WriteCloser interface {
	Writer
	io.Closer
}

type SophieReader interface {
	// ReadFrom decodes the object from r. l is the number of bytes of the
	// serialized object, -1 if unknown.
	ReadFrom(r Reader, l int) error
}

type SophieWriter interface {
	WriteTo(w Writer) error
}

type Sophier interface {
	SophieReader
	SophieWriter
}

// Int32 is a fixed 4-byte little-endian integer.
type Int32 int32

func NewInt32() Sophier {
	return new(Int32)
}

func (i Int32) WriteTo(w Writer) error {
	arr := [4]byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)}
	_, err := w.Write(arr[:])
	return err
}

func (i *Int32) ReadFrom(r Reader, l int) error {
	var arr [4]byte
	if _, err := io.ReadFull(r, arr[:]); err != nil {
		return err
	}
	*i = Int32(arr[0]) | Int32(arr[1])<<8 | Int32(arr[2])<<16 |
		Int32(arr[3])<<24
	return nil
}

func (i Int32) Val() int32 {
	return int32(i)
}

// Float64 is an IEEE-754 double stored in 8 little-endian bytes.
type Float64 float64

func (f Float64) WriteTo(w Writer) error {
	bits := math.Float64bits(float64(f))
	var arr [8]byte
	for i := range arr {
		arr[i] = byte(bits >> (8 * uint(i)))
	}
	_, err := w.Write(arr[:])
	return err
}

func (f *Float64) ReadFrom(r Reader, l int) error {
	var arr [8]byte
	if _, err := io.ReadFull(r, arr[:]); err != nil {
		return err
	}
	var bits uint64
	for i := range arr {
		bits |= uint64(arr[i]) << (8 * uint(i))
	}
	*f = Float64(math.Float64frombits(bits))
	return nil
}

func (f Float64) Val() float64 {
	return float64(f)
}

// VInt is an unsigned integer serialized as a varint.
type VInt uint64

func NewVInt() Sophier {
	return new(VInt)
}

func (i VInt) WriteTo(w Writer) error {
	var arr [10]byte
	n := 0
	for i > 0x7f {
		arr[n] = byte(i&0x7f) | 0x80
		n++
		i >>= 7
	}
	arr[n] = byte(i)
	n++
	_, err := w.Write(arr[:n])
	return err
}

func (i *VInt) ReadFrom(r Reader, l int) error {
	var v VInt
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	v = VInt(b & 0x7f)
	for n := VInt(7); b&0x80 != 0; n += 7 {
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		v |= VInt(b&0x7f) << n
	}
	*i = v
	return nil
}

func (i VInt) Val() int64 {
	return int64(i)
}

func (i VInt) String() string {
	return fmt.Sprint(uint64(i))
}

// Int32Slice is a list of int32 prefixed by its length as an Int32.
type Int32Slice []int32

func (s Int32Slice) WriteTo(w Writer) error {
	if err := Int32(len(s)).WriteTo(w); err != nil {
		return err
	}
	for _, v := range s {
		if err := Int32(v).WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

func (s *Int32Slice) ReadFrom(r Reader, l int) error {
	var n Int32
	if err := n.ReadFrom(r, 4); err != nil {
		return err
	}
	if n < 0 || (l >= 0 && 4+4*int(n) != l) {
		return ErrBadFormat
	}
	if cap(*s) < int(n) {
		*s = make(Int32Slice, n)
	}
	*s = (*s)[:n]
	for i := range *s {
		var v Int32
		if err := v.ReadFrom(r, 4); err != nil {
			return err
		}
		(*s)[i] = int32(v)
	}
	return nil
}

// ByteArray is a byte slice prefixed by its length as a VInt.
type ByteArray []byte

func (ba ByteArray) WriteTo(w Writer) error {
	if err := VInt(len(ba)).WriteTo(w); err != nil {
		return err
	}
	_, err := w.Write(ba)
	return err
}

func (ba *ByteArray) ReadFrom(r Reader, l int) error {
	var vl VInt
	if err := vl.ReadFrom(r, -1); err != nil {
		return err
	}
	if VInt(cap(*ba)) < vl {
		*ba = make(ByteArray, vl)
	}
	*ba = (*ba)[:vl]
	_, err := io.ReadFull(r, *ba)
	return err
}

// String is a string prefixed by its length.
type String string

func NewString() Sophier {
	return new(String)
}

func (s String) WriteTo(w Writer) error {
	return ByteArray(s).WriteTo(w)
}

func (s *String) ReadFrom(r Reader, l int) error {
	var ba ByteArray
	if err := ba.ReadFrom(r, l); err != nil {
		return err
	}
	*s = String(ba)
	return nil
}

func (s String) Val() string {
	return string(s)
}

// RawString is a string without a length prefix. It occupies all l bytes
// when read, or the rest of the reader if l < 0.
type RawString string

func NewRawString() Sophier {
	return new(RawString)
}

func (s RawString) WriteTo(w Writer) error {
	_, err := io.WriteString(w, string(s))
	return err
}

func (s *RawString) ReadFrom(r Reader, l int) error {
	if l < 0 {
		bs, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		*s = RawString(bs)
		return nil
	}
	bs := make([]byte, l)
	if _, err := io.ReadFull(r, bs); err != nil {
		return err
	}
	*s = RawString(bs)
	return nil
}

func (s RawString) Val() string {
	return string(s)
}

// Collector is the sink of kv pairs.
type Collector interface {
	Collect(key, val SophieWriter) error
}

type CollectCloser interface {
	Collector
	io.Closer
}

// Iterator is the source of kv pairs. Next returns EOF at the end.
type Iterator interface {
	Next(key, val SophieReader) error
}

type IterateCloser interface {
	Iterator
	io.Closer
}
