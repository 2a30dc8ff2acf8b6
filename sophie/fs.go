package sophie

import (
	"bufio"
	"os"
	"path/filepath"
)

// FileSystem is the storage the runtime reads inputs from and writes outputs
// and spill files to. Directories are created implicitly by Mkdir.
type FileSystem interface {
	Create(fn string) (WriteCloser, error)
	Mkdir(path string, perm os.FileMode) error
	Open(fn string) (ReadCloser, error)
	// ReadDir returns the entries of dir sorted by name.
	ReadDir(dir string) ([]os.FileInfo, error)
	Stat(fn string) (os.FileInfo, error)
	// Remove removes fn and everything under it.
	Remove(fn string) error
}

type BufferedFileWriter struct {
	file *os.File
	*bufio.Writer
}

func (b BufferedFileWriter) Close() error {
	if err := b.Flush(); err != nil {
		b.file.Close()
		return err
	}
	return b.file.Close()
}

// BufferedReadCloser wraps a bufio.Reader with the Closer of the underlying
// stream.
type BufferedReadCloser struct {
	*bufio.Reader
	CloseF func() error
}

func (b BufferedReadCloser) Close() error {
	if b.CloseF == nil {
		return nil
	}
	return b.CloseF()
}

func (b BufferedReadCloser) Skip(n int64) (int64, error) {
	left := n
	for left > 0 {
		l := left
		if l > 1<<20 {
			l = 1 << 20
		}
		d, err := b.Discard(int(l))
		left -= int64(d)
		if err != nil {
			return n - left, err
		}
	}
	return n, nil
}

type localFileSystem struct{}

var (
	LocalFS FileSystem = localFileSystem{}
)

func (localFileSystem) Create(fn string) (WriteCloser, error) {
	file, err := os.Create(fn)
	if err != nil {
		return nil, err
	}
	return BufferedFileWriter{
		file:   file,
		Writer: bufio.NewWriter(file),
	}, nil
}

func (localFileSystem) Open(fn string) (ReadCloser, error) {
	file, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	return BufferedReadCloser{
		Reader: bufio.NewReader(file),
		CloseF: file.Close,
	}, nil
}

func (localFileSystem) ReadDir(dir string) ([]os.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (localFileSystem) Mkdir(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (localFileSystem) Stat(fn string) (os.FileInfo, error) {
	return os.Stat(fn)
}

func (localFileSystem) Remove(fn string) error {
	return os.RemoveAll(fn)
}

type FsPath struct {
	Fs   FileSystem
	Path string
}

// LocalFsPath returns a FsPath of LocalFS.
func LocalFsPath(path string) FsPath {
	return FsPath{
		Fs:   LocalFS,
		Path: path,
	}
}

func (fp FsPath) Create() (WriteCloser, error) {
	return fp.Fs.Create(fp.Path)
}

func (fp FsPath) Open() (ReadCloser, error) {
	return fp.Fs.Open(fp.Path)
}

func (fp FsPath) ReadDir() ([]os.FileInfo, error) {
	return fp.Fs.ReadDir(fp.Path)
}

func (fp FsPath) Mkdir(perm os.FileMode) error {
	return fp.Fs.Mkdir(fp.Path, perm)
}

func (fp FsPath) Stat() (os.FileInfo, error) {
	return fp.Fs.Stat(fp.Path)
}

func (fp FsPath) Remove() error {
	return fp.Fs.Remove(fp.Path)
}

func (fp FsPath) Join(sub string) FsPath {
	return FsPath{
		Fs:   fp.Fs,
		Path: filepath.Join(fp.Path, sub),
	}
}
