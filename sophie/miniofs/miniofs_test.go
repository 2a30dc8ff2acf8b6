package miniofs

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/golangplus/testing/assert"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/daviddengcn/mrkmeans/sophie"
)

func TestKey(t *testing.T) {
	fs := New(nil, "bucket", "jobs/")
	assert.Equal(t, "key", fs.key("out/iter-001/part-00000"), "jobs/out/iter-001/part-00000")
	assert.Equal(t, "dirPrefix", fs.dirPrefix("out"), "jobs/out/")

	fs = New(nil, "bucket", "")
	assert.Equal(t, "key", fs.key("/records/part-00000"), "records/part-00000")
	assert.Equal(t, "dirPrefix", fs.dirPrefix("."), "")
}

func TestFileInfo(t *testing.T) {
	fi := fileInfo{name: "records", isDir: true}
	assert.True(t, "IsDir", fi.Mode().IsDir())
	fi = fileInfo{name: "part-00000", size: 12}
	assert.False(t, "IsDir", fi.Mode().IsDir())
	assert.Equal(t, "Size", fi.Size(), int64(12))
}

// TestFS_Integration runs against the MinIO server in $MINIO_ENDPOINT with the
// default minioadmin credentials.
func TestFS_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	assert.NoErrorOrDie(t, err)

	ctx := context.Background()
	const bucket = "test-mrkmeans"
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	if !exists {
		assert.NoErrorOrDie(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	root := sophie.FsPath{Fs: New(client, bucket, "test").WithContext(ctx), Path: "fs"}
	defer root.Remove()

	for _, name := range []string{"part-00001", "part-00000"} {
		w, err := root.Join(name).Create()
		assert.NoErrorOrDie(t, err)
		_, err = io.WriteString(w, name)
		assert.NoError(t, err)
		assert.NoError(t, w.Close())
	}

	infos, err := root.ReadDir()
	assert.NoErrorOrDie(t, err)
	assert.Equal(t, "len(infos)", len(infos), 2)
	assert.Equal(t, "infos[0]", infos[0].Name(), "part-00000")

	r, err := root.Join("part-00001").Open()
	assert.NoErrorOrDie(t, err)
	bs, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.NoError(t, r.Close())
	assert.Equal(t, "content", string(bs), "part-00001")

	fi, err := root.Stat()
	assert.NoError(t, err)
	assert.True(t, "IsDir", fi.IsDir())

	assert.NoError(t, root.Remove())
	_, err = root.Join("part-00000").Open()
	assert.True(t, "IsNotExist", os.IsNotExist(err))
}
