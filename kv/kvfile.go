/*
Package kv supports reading and writing the key-value files used for record
partitions and shuffle spills.

KVFile format:

	vint(key-len) key vint(val-len) val
*/
package kv

import (
	"io"

	"github.com/golangplus/bytes"
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/sophie"
)

// kv.Writer is a struct for generating a kv file.
// *kv.Writer implements the sophie.CollectCloser interface.
type Writer struct {
	writer sophie.WriteCloser
	objBuf bytesp.Slice
}

// NewWriter returns a *kv.Writer for writing a kv file at the specified FsPath.
func NewWriter(fp sophie.FsPath) (*Writer, error) {
	writer, err := fp.Fs.Create(fp.Path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Writer{
		writer: writer,
	}, nil
}

// io.Closer interface
func (kvw *Writer) Close() error {
	return kvw.writer.Close()
}

func (kvw *Writer) writeObj(obj sophie.SophieWriter) error {
	kvw.objBuf.Reset()
	if err := obj.WriteTo(&kvw.objBuf); err != nil {
		return err
	}
	if err := sophie.VInt(len(kvw.objBuf)).WriteTo(kvw.writer); err != nil {
		return err
	}
	_, err := kvw.writer.Write([]byte(kvw.objBuf))
	return err
}

// sophie.CollectCloser interface
func (kvw *Writer) Collect(key, val sophie.SophieWriter) error {
	if err := kvw.writeObj(key); err != nil {
		return errors.Wrap(err, "writing key failed")
	}
	if err := kvw.writeObj(val); err != nil {
		return errors.Wrap(err, "writing value failed")
	}
	return nil
}

type countedReadCloser struct {
	Pos int64
	sophie.ReadCloser
}

func (r *countedReadCloser) Read(p []byte) (n int, err error) {
	n, err = r.ReadCloser.Read(p)
	r.Pos += int64(n)
	return n, err
}

func (r *countedReadCloser) ReadByte() (c byte, err error) {
	c, err = r.ReadCloser.ReadByte()
	if err != nil {
		return c, err
	}
	r.Pos++
	return c, nil
}

func (r *countedReadCloser) Skip(n int64) (int64, error) {
	n1, err := r.ReadCloser.Skip(n)
	r.Pos += n1
	return n1, err
}

func countReadCloser(reader sophie.ReadCloser) *countedReadCloser {
	return &countedReadCloser{
		ReadCloser: reader,
	}
}

// kv.Reader is a struct for reading a kv file.
// *kv.Reader implements the sophie.IterateCloser interface.
type Reader struct {
	reader countedReadCloser
}

// NewReader returns a *Reader for reading the kv file at the specified FsPath.
func NewReader(fp sophie.FsPath) (*Reader, error) {
	reader, err := fp.Fs.Open(fp.Path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Reader{
		reader: countedReadCloser{ReadCloser: reader},
	}, nil
}

// io.Closer interface
func (kvr *Reader) Close() error {
	return kvr.reader.Close()
}

// Next fetches next key/val pair. sophie.EOF is returned at the end of the file.
func (kvr *Reader) Next(key, val sophie.SophieReader) error {
	var l sophie.VInt
	if err := (&l).ReadFrom(&kvr.reader, -1); err != nil {
		if err == io.EOF {
			return sophie.EOF
		}
		return errors.Wrap(err, "reading key length failed")
	}
	posEnd := kvr.reader.Pos + int64(l)
	if err := key.ReadFrom(&kvr.reader, int(l)); err != nil {
		if errors.Cause(err) == io.EOF {
			return errors.Wrap(io.ErrUnexpectedEOF, "Unexpected EOF reading key")
		}
		return errors.Wrapf(err, "reading key %v failed", key)
	}
	if kvr.reader.Pos != posEnd {
		return errors.Wrapf(sophie.ErrBadFormat, "PosEnd wrong after reading key(len = %d) %v: exp %d, act %d", l, key, posEnd, kvr.reader.Pos)
	}

	if err := (&l).ReadFrom(&kvr.reader, -1); err != nil {
		if errors.Cause(err) == io.EOF {
			return errors.Wrapf(io.ErrUnexpectedEOF, "Unexpected EOF reading val length for key %v", key)
		}
		return errors.WithStack(err)
	}
	posEnd = kvr.reader.Pos + int64(l)
	if err := val.ReadFrom(&kvr.reader, int(l)); err != nil {
		if errors.Cause(err) == io.EOF {
			return errors.Wrapf(io.ErrUnexpectedEOF, "Unexpected EOF reading val for key %v", key)
		}
		return errors.Wrapf(err, "reading value for key %v failed", key)
	}
	if kvr.reader.Pos != posEnd {
		return errors.Wrapf(sophie.ErrBadFormat, "PosEnd wrong after reading key %v, value %v: exp %d, act %d",
			key, val, posEnd, kvr.reader.Pos)
	}
	return nil
}

// ReadAsByteOffs reads a kv file as a slice of buffer and some int slices
// of key offsets, key ends, value offsets, and value ends.
func ReadAsByteOffs(fp sophie.FsPath) (buffer bytesp.Slice, keyOffs, keyEnds, valOffs, valEnds []int, err error) {
	reader, err := fp.Open()
	if err != nil {
		return nil, nil, nil, nil, nil, errors.WithStack(err)
	}
	defer reader.Close()

	// The file size is not used because the file system may be compressed.
	if _, err := buffer.ReadFrom(reader); err != nil {
		return nil, nil, nil, nil, nil, errors.Wrapf(err, "reading %s failed", fp.Path)
	}
	buf := countReadCloser(bytesp.NewPSlice(buffer))
	for buf.Pos < int64(len(buffer)) {
		var l sophie.VInt
		if err := (&l).ReadFrom(buf, -1); err != nil {
			return nil, nil, nil, nil, nil, errors.Wrapf(sophie.ErrBadFormat, "failed to read key-length: %v", err)
		}
		keyOffs = append(keyOffs, int(buf.Pos))
		if n, err := buf.Skip(int64(l)); err != nil || n != int64(l) {
			return nil, nil, nil, nil, nil, errors.Wrapf(sophie.ErrBadFormat, "failed to skip key: %v", err)
		}
		keyEnds = append(keyEnds, int(buf.Pos))
		if err := (&l).ReadFrom(buf, -1); err != nil {
			return nil, nil, nil, nil, nil, errors.Wrapf(sophie.ErrBadFormat, "failed to read value-length: %v", err)
		}
		valOffs = append(valOffs, int(buf.Pos))
		if n, err := buf.Skip(int64(l)); err != nil || n != int64(l) {
			return nil, nil, nil, nil, nil, errors.Wrapf(sophie.ErrBadFormat, "failed to read value: %v", err)
		}
		valEnds = append(valEnds, int(buf.Pos))
	}
	return buffer, keyOffs, keyEnds, valOffs, valEnds, nil
}

// WriteByteOffs generates a kv file with key-value pairs represented as a
// slice of buffer and some int slices of key offsets, key ends, value offsets,
// and value ends.
func WriteByteOffs(fp sophie.FsPath, buffer []byte, keyOffs, keyEnds, valOffs, valEnds []int) error {
	if len(keyOffs) != len(keyEnds) || len(keyOffs) != len(valOffs) || len(keyOffs) != len(valEnds) {
		return errors.Errorf("length of keyOffs(%d), keyEnds(%d), valOffs(%d) and valEnds(%d) must be the same",
			len(keyOffs), len(keyEnds), len(valOffs), len(valEnds))
	}
	writer, err := fp.Create()
	if err != nil {
		return errors.WithStack(err)
	}

	for i, keyOff := range keyOffs {
		keyEnd, valOff, valEnd := keyEnds[i], valOffs[i], valEnds[i]
		if err := sophie.VInt(keyEnd - keyOff).WriteTo(writer); err != nil {
			writer.Close()
			return errors.WithStack(err)
		}
		if _, err := writer.Write(buffer[keyOff:keyEnd]); err != nil {
			writer.Close()
			return errors.WithStack(err)
		}
		if err := sophie.VInt(valEnd - valOff).WriteTo(writer); err != nil {
			writer.Close()
			return errors.WithStack(err)
		}
		if _, err := writer.Write(buffer[valOff:valEnd]); err != nil {
			writer.Close()
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(writer.Close())
}
