package kmeans

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/kv"
	"github.com/daviddengcn/mrkmeans/record"
	"github.com/daviddengcn/mrkmeans/sophie"
)

// FinalName is the file name of the final centroids in the output folder.
const FinalName = "clusters.txt"

// CentroidDir is a folder of text files with one "<index>\t<features>" line
// per centroid. As an mr.Output it expects sophie.Int32 keys and
// record.Record values.
type CentroidDir sophie.FsPath

type centroidWriter struct {
	w sophie.WriteCloser
}

func intKey(key sophie.SophieWriter) (int, error) {
	switch k := key.(type) {
	case sophie.Int32:
		return int(k), nil
	case *sophie.Int32:
		return int(*k), nil
	}
	return 0, errors.Errorf("unexpected centroid key type %T", key)
}

func recordVal(val sophie.SophieWriter) (record.Record, error) {
	switch v := val.(type) {
	case record.Record:
		return v, nil
	case *record.Record:
		return *v, nil
	}
	return record.Record{}, errors.Errorf("unexpected centroid value type %T", val)
}

// sophie.Collector interface
func (cw *centroidWriter) Collect(key, val sophie.SophieWriter) error {
	idx, err := intKey(key)
	if err != nil {
		return err
	}
	rec, err := recordVal(val)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cw.w, "%d\t%s\n", idx, rec)
	return errors.WithStack(err)
}

// io.Closer interface
func (cw *centroidWriter) Close() error {
	return errors.WithStack(cw.w.Close())
}

// mr.Output interface
func (dir CentroidDir) Collector(part int) (sophie.CollectCloser, error) {
	fp := sophie.FsPath(dir)
	if err := fp.Mkdir(0755); err != nil {
		return nil, errors.WithStack(err)
	}
	w, err := fp.Join(kv.PartName(part)).Create()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &centroidWriter{w: w}, nil
}

// WriteCentroids writes all centroids into dir as a single part.
func WriteCentroids(dir sophie.FsPath, centroids []record.Record) error {
	c, err := CentroidDir(dir).Collector(0)
	if err != nil {
		return err
	}
	for i, ctr := range centroids {
		if err := c.Collect(sophie.Int32(i), ctr); err != nil {
			c.Close()
			return err
		}
	}
	return c.Close()
}

func readLines(fp sophie.FsPath, f func(line string) error) error {
	r, err := fp.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	s := bufio.NewScanner(r)
	s.Buffer(nil, 16<<20)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if err := f(line); err != nil {
			return errors.Wrapf(err, "%v", fp.Path)
		}
	}
	return errors.WithStack(s.Err())
}

// ReadCentroids reads the centroids in dir into a slice of length k. Indexes
// absent from dir are left as zero Records, whose Features are nil.
func ReadCentroids(dir sophie.FsPath, k int) ([]record.Record, error) {
	infos, err := dir.ReadDir()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	centroids := make([]record.Record, k)
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		err := readLines(dir.Join(info.Name()), func(line string) error {
			tab := strings.IndexByte(line, '\t')
			if tab < 0 {
				return errors.Wrapf(sophie.ErrBadFormat, "no index in %q", line)
			}
			idx, err := strconv.Atoi(line[:tab])
			if err != nil {
				return errors.Wrapf(sophie.ErrBadFormat, "bad index in %q", line)
			}
			if idx < 0 || idx >= k {
				return errors.Wrapf(sophie.ErrBadFormat, "index %d out of range [0, %d)", idx, k)
			}
			if centroids[idx].Features != nil {
				return errors.Wrapf(sophie.ErrBadFormat, "duplicated index %d", idx)
			}
			rec, err := record.ParseLine(line[tab+1:])
			if err != nil {
				return errors.Wrapf(sophie.ErrBadFormat, "centroid %d: %v", idx, err)
			}
			centroids[idx] = rec
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return centroids, nil
}

// WriteFinalCentroids writes one line of comma-separated features per
// centroid, in index order.
func WriteFinalCentroids(fp sophie.FsPath, centroids []record.Record) error {
	w, err := fp.Create()
	if err != nil {
		return errors.WithStack(err)
	}
	for _, c := range centroids {
		if _, err := fmt.Fprintln(w, c.String()); err != nil {
			w.Close()
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(w.Close())
}

// ReadFinalCentroids reads a file written by WriteFinalCentroids.
func ReadFinalCentroids(fp sophie.FsPath) ([]record.Record, error) {
	var centroids []record.Record
	err := readLines(fp, func(line string) error {
		rec, err := record.ParseLine(line)
		if err != nil {
			return errors.Wrapf(sophie.ErrBadFormat, "centroid %d: %v", len(centroids), err)
		}
		centroids = append(centroids, rec)
		return nil
	})
	return centroids, err
}
