/*
Package miniofs implements sophie.FileSystem on top of MinIO and other
S3-compatible object stores.

Object stores have no directories: a directory is the set of objects sharing
the key prefix "dir/". Mkdir is a no-op, Remove deletes every object under the
prefix, and files are uploaded in one PutObject when their writer is closed.
*/
package miniofs

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/golangplus/bytes"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/sophie"
)

// FS is a sophie.FileSystem storing files as objects in Bucket under Prefix.
type FS struct {
	Client *minio.Client
	Bucket string
	Prefix string

	ctx context.Context
}

var _ sophie.FileSystem = FS{}

// New returns an FS rooted at prefix of bucket.
func New(client *minio.Client, bucket, prefix string) FS {
	return FS{
		Client: client,
		Bucket: bucket,
		Prefix: prefix,
	}
}

// WithContext returns a copy of fs whose requests use ctx.
func (fs FS) WithContext(ctx context.Context) FS {
	fs.ctx = ctx
	return fs
}

func (fs FS) context() context.Context {
	if fs.ctx == nil {
		return context.Background()
	}
	return fs.ctx
}

func (fs FS) key(name string) string {
	return strings.TrimPrefix(path.Join(fs.Prefix, name), "/")
}

func (fs FS) dirPrefix(name string) string {
	k := fs.key(name)
	if k == "" || k == "." {
		return ""
	}
	return k + "/"
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

type objectWriter struct {
	bytesp.Slice
	fs  FS
	key string
}

func (w *objectWriter) Close() error {
	_, err := w.fs.Client.PutObject(w.fs.context(), w.fs.Bucket, w.key,
		bytes.NewReader(w.Slice), int64(len(w.Slice)), minio.PutObjectOptions{})
	return errors.Wrapf(err, "put object %s", w.key)
}

// sophie.FileSystem interface
func (fs FS) Create(fn string) (sophie.WriteCloser, error) {
	return &objectWriter{fs: fs, key: fs.key(fn)}, nil
}

// sophie.FileSystem interface. Directories are implicit.
func (fs FS) Mkdir(string, os.FileMode) error {
	return nil
}

// sophie.FileSystem interface
func (fs FS) Open(fn string) (sophie.ReadCloser, error) {
	key := fs.key(fn)
	if _, err := fs.Client.StatObject(fs.context(), fs.Bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, &os.PathError{Op: "open", Path: fn, Err: os.ErrNotExist}
		}
		return nil, errors.Wrapf(err, "stat object %s", key)
	}
	obj, err := fs.Client.GetObject(fs.context(), fs.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get object %s", key)
	}
	return sophie.BufferedReadCloser{
		Reader: bufio.NewReader(obj),
		CloseF: obj.Close,
	}, nil
}

// sophie.FileSystem interface
func (fs FS) ReadDir(dir string) ([]os.FileInfo, error) {
	ctx, cancel := context.WithCancel(fs.context())
	defer cancel()

	prefix := fs.dirPrefix(dir)
	var infos []os.FileInfo
	for obj := range fs.Client.ListObjects(ctx, fs.Bucket, minio.ListObjectsOptions{
		Prefix: prefix,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrapf(obj.Err, "list objects %s", prefix)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		isDir := strings.HasSuffix(name, "/")
		name = strings.TrimSuffix(name, "/")
		if name == "" {
			continue
		}
		infos = append(infos, fileInfo{
			name:    name,
			size:    obj.Size,
			modTime: obj.LastModified,
			isDir:   isDir,
		})
	}
	if len(infos) == 0 {
		return nil, &os.PathError{Op: "readdir", Path: dir, Err: os.ErrNotExist}
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})
	return infos, nil
}

// sophie.FileSystem interface
func (fs FS) Stat(fn string) (os.FileInfo, error) {
	key := fs.key(fn)
	info, err := fs.Client.StatObject(fs.context(), fs.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return fileInfo{
			name:    path.Base(key),
			size:    info.Size,
			modTime: info.LastModified,
		}, nil
	}
	if !isNotFound(err) {
		return nil, errors.Wrapf(err, "stat object %s", key)
	}
	ctx, cancel := context.WithCancel(fs.context())
	defer cancel()
	for obj := range fs.Client.ListObjects(ctx, fs.Bucket, minio.ListObjectsOptions{
		Prefix:  fs.dirPrefix(fn),
		MaxKeys: 1,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrapf(obj.Err, "list objects %s", key)
		}
		return fileInfo{name: path.Base(key), isDir: true}, nil
	}
	return nil, &os.PathError{Op: "stat", Path: fn, Err: os.ErrNotExist}
}

// sophie.FileSystem interface
func (fs FS) Remove(fn string) error {
	key := fs.key(fn)
	ctx, cancel := context.WithCancel(fs.context())
	defer cancel()
	for obj := range fs.Client.ListObjects(ctx, fs.Bucket, minio.ListObjectsOptions{
		Prefix:    fs.dirPrefix(fn),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return errors.Wrapf(obj.Err, "list objects %s", key)
		}
		if err := fs.Client.RemoveObject(fs.context(), fs.Bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
			return errors.Wrapf(err, "remove object %s", obj.Key)
		}
	}
	if err := fs.Client.RemoveObject(fs.context(), fs.Bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return errors.Wrapf(err, "remove object %s", key)
	}
	return nil
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) ModTime() time.Time { return fi.modTime }
func (fi fileInfo) IsDir() bool        { return fi.isDir }
func (fi fileInfo) Sys() interface{}   { return nil }

func (fi fileInfo) Mode() os.FileMode {
	if fi.isDir {
		return os.ModeDir | 0755
	}
	return 0644
}
