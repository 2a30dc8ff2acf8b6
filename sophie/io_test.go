package sophie

import (
	"fmt"
	"math"
	"testing"

	"github.com/golangplus/bytes"
	"github.com/golangplus/testing/assert"
)

func readWrite(t *testing.T, sa, sb Sophier, outBytes int) {
	var buf bytesp.Slice
	assert.NoError(t, sa.WriteTo(&buf))

	if outBytes >= 0 {
		assert.Equal(t, fmt.Sprintf("readWrite(%v): buf.Len", sa), len(buf), outBytes)
	}

	assert.NoError(t, sb.ReadFrom(&buf, len(buf)))
	assert.Equal(t, fmt.Sprintf("readWrite(%v): remaining", sa), len(buf), 0)
}

func TestBasicSophieTypes(t *testing.T) {
	var i32a, i32b Int32
	i32a = 1234
	readWrite(t, &i32a, &i32b, 4)
	assert.Equal(t, "i32b", i32b, i32a)

	i32a = -1234
	readWrite(t, &i32a, &i32b, 4)
	assert.Equal(t, "i32b", i32b, i32a)

	var sa, sb String
	sa = ""
	readWrite(t, &sa, &sb, 1)
	assert.Equal(t, "sb", sb, sa)

	sa = "Hello"
	readWrite(t, &sa, &sb, 6)
	assert.Equal(t, "sb", sb, sa)

	sa = ""
	for len(sa) < 127 {
		sa += "a"
	}
	readWrite(t, &sa, &sb, 128)
	assert.Equal(t, "sb", sb, sa)

	for len(sa) < 128 {
		sa += "a"
	}
	readWrite(t, &sa, &sb, 130)
	assert.Equal(t, "sb", sb, sa)
}

func TestVInt(t *testing.T) {
	for _, c := range []struct {
		v VInt
		n int
	}{
		{0, 1}, {127, 1}, {128, 2}, {16383, 2}, {16384, 3}, {math.MaxUint64, 10},
	} {
		var b VInt
		readWrite(t, &c.v, &b, c.n)
		assert.Equal(t, fmt.Sprintf("VInt(%d)", c.v), b, c.v)
	}
}

func TestFloat64(t *testing.T) {
	for _, v := range []float64{0, 1.05, -9.2, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(-1)} {
		fa, fb := Float64(v), Float64(0)
		readWrite(t, &fa, &fb, 8)
		assert.Equal(t, fmt.Sprintf("Float64(%v)", v), fb, fa)
	}
}

func TestInt32Slice(t *testing.T) {
	sa := Int32Slice{3, 7, 12}
	var sb Int32Slice
	readWrite(t, &sa, &sb, 16)
	assert.Equal(t, "sb", sb, sa)

	sa = Int32Slice{}
	readWrite(t, &sa, &sb, 4)
	assert.Equal(t, "len(sb)", len(sb), 0)
}

func TestInt32Slice_BadLength(t *testing.T) {
	var buf bytesp.Slice
	assert.NoError(t, Int32Slice{1, 2}.WriteTo(&buf))
	var s Int32Slice
	assert.Equal(t, "err", s.ReadFrom(&buf, len(buf)+4), ErrBadFormat)
}

func TestRawString(t *testing.T) {
	sa, sb := RawString("1.0,2.5,setosa"), RawString("")
	readWrite(t, &sa, &sb, len(sa))
	assert.Equal(t, "sb", sb, sa)

	buf := bytesp.Slice("rest of input")
	assert.NoError(t, sb.ReadFrom(&buf, -1))
	assert.Equal(t, "sb", sb.Val(), "rest of input")
}
