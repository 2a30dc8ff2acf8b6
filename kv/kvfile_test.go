package kv

import (
	"fmt"
	"testing"

	"github.com/golangplus/testing/assert"

	"github.com/daviddengcn/mrkmeans/sophie"
)

func TestReaderWriter(t *testing.T) {
	for _, fs := range []sophie.FileSystem{sophie.LocalFS, sophie.ZstdFS{FileSystem: sophie.LocalFS}} {
		fn := sophie.FsPath{Fs: fs, Path: t.TempDir()}.Join("test.kv")

		keys := []sophie.String{
			"abc", "def",
		}
		vals := []sophie.VInt{
			2, 2013,
		}

		writer, err := NewWriter(fn)
		assert.NoErrorOrDie(t, err)

		for i, key := range keys {
			val := vals[i]
			assert.NoError(t, writer.Collect(key, val))
		}
		assert.NoError(t, writer.Close())

		reader, err := NewReader(fn)
		assert.NoErrorOrDie(t, err)

		var key sophie.String
		var val sophie.VInt
		cnt := 0
		for i := 0; ; i++ {
			err := reader.Next(&key, &val)
			if err == sophie.EOF {
				break
			}
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("key[%d]", i), key, keys[i])
			assert.Equal(t, fmt.Sprintf("val[%d]", i), val, vals[i])
			cnt++
		}
		assert.Equal(t, "cnt", cnt, len(keys))

		assert.NoError(t, reader.Close())
	}
}

func TestReadAsByteOffsWriteByteOffs(t *testing.T) {
	fn := sophie.LocalFsPath(t.TempDir()).Join("test.kv")

	keyLens := []int{
		1, 2, 3, 4,
	}
	valLens := []int{
		5, 6, 7, 0,
	}
	assert.Equal(t, "len(keyLens)", len(keyLens), len(valLens))

	var keyOffs, keyEnds, valOffs, valEnds []int
	off := 0
	for i, keyLen := range keyLens {
		valLen := valLens[i]

		keyOffs = append(keyOffs, off)
		off += keyLen
		keyEnds = append(keyEnds, off)

		valOffs = append(valOffs, off)
		off += valLen
		valEnds = append(valEnds, off)
	}
	buffer := make([]byte, off)
	for i := range buffer {
		buffer[i] = byte(i)
	}
	assert.NoError(t, WriteByteOffs(fn, buffer, keyOffs, keyEnds, valOffs, valEnds))

	readBuffer, readKeyOffs, readKeyEnds, readValOffs, readValEnds, err := ReadAsByteOffs(fn)
	assert.NoErrorOrDie(t, err)
	assert.Equal(t, "len(keyOffs)", len(readKeyOffs), len(keyLens))
	assert.Equal(t, "len(keyEnds)", len(readKeyEnds), len(keyLens))
	assert.Equal(t, "len(valOffs)", len(readValOffs), len(keyLens))
	assert.Equal(t, "len(valEnds)", len(readValEnds), len(keyLens))
	for i, keyLen := range keyLens {
		valLen := valLens[i]

		assert.Equal(t, fmt.Sprintf("keyLen[%d]", i), readKeyEnds[i]-readKeyOffs[i], keyLen)
		assert.Equal(t, fmt.Sprintf("valLen[%d]", i), readValEnds[i]-readValOffs[i], valLen)

		assert.StringEqual(t, fmt.Sprintf("key[%d]", i), readBuffer[readKeyOffs[i]:readKeyEnds[i]], buffer[keyOffs[i]:keyEnds[i]])
		assert.StringEqual(t, fmt.Sprintf("val[%d]", i), readBuffer[readValOffs[i]:readValEnds[i]], buffer[valOffs[i]:valEnds[i]])
	}
}

func TestWriteByteOffs_DiffLength(t *testing.T) {
	assert.Error(t, WriteByteOffs(sophie.FsPath{}, nil, nil, []int{1}, []int{1, 2}, []int{1, 2, 3}))
}

func TestDirInputOutput(t *testing.T) {
	dir := sophie.LocalFsPath(t.TempDir()).Join("out")
	out := DirOutput(dir)
	for part := 0; part < 3; part++ {
		c, err := out.Collector(part)
		assert.NoErrorOrDie(t, err)
		assert.NoError(t, c.Collect(sophie.Int32(part), sophie.RawString(fmt.Sprint("v", part))))
		assert.NoError(t, c.Close())
	}

	in := DirInput(dir)
	n, err := in.PartCount()
	assert.NoError(t, err)
	assert.Equal(t, "PartCount", n, 3)
	for part := 0; part < n; part++ {
		it, err := in.Iterator(part)
		assert.NoErrorOrDie(t, err)
		var key sophie.Int32
		var val sophie.RawString
		assert.NoError(t, it.Next(&key, &val))
		assert.Equal(t, "key", key, sophie.Int32(part))
		assert.Equal(t, "val", val, sophie.RawString(fmt.Sprint("v", part)))
		assert.Equal(t, "EOF", it.Next(&key, &val), sophie.EOF)
		assert.NoError(t, it.Close())
	}
	_, err = in.Iterator(3)
	assert.Error(t, err)

	assert.NoError(t, out.Clean())
	_, err = in.PartCount()
	assert.Error(t, err)
}
