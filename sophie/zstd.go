package sophie

import (
	"bufio"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// ZstdFS compresses every file created through it and decompresses every file
// opened through it. Stat and ReadDir report compressed sizes.
type ZstdFS struct {
	FileSystem
	// Level is the encoder level, zstd.SpeedFastest if zero.
	Level zstd.EncoderLevel
}

type zstdWriteCloser struct {
	*bufio.Writer
	enc *zstd.Encoder
	out WriteCloser
}

func (w zstdWriteCloser) Close() error {
	if err := w.Flush(); err != nil {
		w.enc.Close()
		w.out.Close()
		return errors.WithStack(err)
	}
	if err := w.enc.Close(); err != nil {
		w.out.Close()
		return errors.WithStack(err)
	}
	return w.out.Close()
}

func (fs ZstdFS) Create(fn string) (WriteCloser, error) {
	out, err := fs.FileSystem.Create(fn)
	if err != nil {
		return nil, err
	}
	level := fs.Level
	if level == 0 {
		level = zstd.SpeedFastest
	}
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		out.Close()
		return nil, errors.WithStack(err)
	}
	return zstdWriteCloser{
		Writer: bufio.NewWriter(enc),
		enc:    enc,
		out:    out,
	}, nil
}

func (fs ZstdFS) Open(fn string) (ReadCloser, error) {
	in, err := fs.FileSystem.Open(fn)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(in, zstd.WithDecoderConcurrency(1))
	if err != nil {
		in.Close()
		return nil, errors.WithStack(err)
	}
	return BufferedReadCloser{
		Reader: bufio.NewReader(dec),
		CloseF: func() error {
			dec.Close()
			return in.Close()
		},
	}, nil
}
