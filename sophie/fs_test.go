package sophie

import (
	"io"
	"testing"

	"github.com/golangplus/testing/assert"
)

func writeFile(t *testing.T, fp FsPath, content string) {
	w, err := fp.Create()
	assert.NoErrorOrDie(t, err)
	_, err = io.WriteString(w, content)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
}

func readFile(t *testing.T, fp FsPath) string {
	r, err := fp.Open()
	assert.NoErrorOrDie(t, err)
	defer r.Close()
	bs, err := io.ReadAll(r)
	assert.NoError(t, err)
	return string(bs)
}

func TestLocalFS(t *testing.T) {
	root := LocalFsPath(t.TempDir())
	dir := root.Join("a")
	assert.NoError(t, dir.Mkdir(0755))

	writeFile(t, dir.Join("part-00001"), "world")
	writeFile(t, dir.Join("part-00000"), "hello")

	infos, err := dir.ReadDir()
	assert.NoError(t, err)
	assert.Equal(t, "len(infos)", len(infos), 2)
	assert.Equal(t, "infos[0]", infos[0].Name(), "part-00000")
	assert.Equal(t, "content", readFile(t, dir.Join("part-00001")), "world")

	assert.NoError(t, dir.Remove())
	_, err = dir.Stat()
	assert.Error(t, err)
}

func TestBufferedReadCloser_Skip(t *testing.T) {
	fp := LocalFsPath(t.TempDir()).Join("f")
	writeFile(t, fp, "0123456789")

	r, err := fp.Open()
	assert.NoErrorOrDie(t, err)
	defer r.Close()
	n, err := r.Skip(4)
	assert.NoError(t, err)
	assert.Equal(t, "n", n, int64(4))
	b, err := r.ReadByte()
	assert.NoError(t, err)
	assert.Equal(t, "b", b, byte('4'))

	n, err = r.Skip(100)
	assert.Equal(t, "n", n, int64(5))
	assert.Equal(t, "err", err, io.EOF)
}

func TestZstdFS(t *testing.T) {
	root := FsPath{Fs: ZstdFS{FileSystem: LocalFS}, Path: t.TempDir()}
	content := ""
	for i := 0; i < 1000; i++ {
		content += "1.0,2.0,3.0\n"
	}
	fp := root.Join("records")
	writeFile(t, fp, content)

	raw := readFile(t, LocalFsPath(fp.Path))
	assert.True(t, "compressed", len(raw) < len(content))
	assert.Equal(t, "content", readFile(t, fp), content)
}
