package kmeans

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/sophie"
)

// TextInput is an mr.Input over the non-blank lines of a text file, split
// into contiguous row ranges. Keys are *sophie.VInt global row indices,
// values are *sophie.RawString lines without the line break.
type TextInput struct {
	Path sophie.FsPath

	// offs[p] is the byte offset of the first row of part p, rows[p] its
	// global row index. Both have one extra entry for the end.
	offs []int64
	rows []int
}

// readLine returns the next line without the line break and the number of
// bytes consumed.
func readLine(r *bufio.Reader) (string, int, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return "", 0, err
	}
	return strings.TrimRight(line, "\r\n"), len(line), nil
}

// NewTextInput scans fp once and splits its rows into at most parts ranges.
// If limit is positive only the first limit rows are used.
func NewTextInput(fp sophie.FsPath, parts, limit int) (*TextInput, error) {
	f, err := fp.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	var starts []int64
	var off int64
	r := bufio.NewReader(f)
	for limit <= 0 || len(starts) < limit {
		line, n, err := readLine(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %v", fp.Path)
		}
		if strings.TrimSpace(line) != "" {
			starts = append(starts, off)
		}
		off += int64(n)
	}

	n := len(starts)
	if parts > n {
		parts = n
	}
	in := &TextInput{Path: fp}
	for p := 0; p <= parts; p++ {
		row := n
		if parts > 0 {
			row = p * n / parts
		}
		in.rows = append(in.rows, row)
		if row < n {
			in.offs = append(in.offs, starts[row])
		} else {
			in.offs = append(in.offs, off)
		}
	}
	return in, nil
}

// Rows returns the number of rows.
func (in *TextInput) Rows() int {
	return in.rows[len(in.rows)-1]
}

// mr.Input interface
func (in *TextInput) PartCount() (int, error) {
	return len(in.rows) - 1, nil
}

// mr.Input interface
func (in *TextInput) Iterator(part int) (sophie.IterateCloser, error) {
	if part < 0 || part >= len(in.rows)-1 {
		return nil, errors.Errorf("part %d out of range [0, %d)", part, len(in.rows)-1)
	}
	f, err := in.Path.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if n, err := f.Skip(in.offs[part]); err != nil || n != in.offs[part] {
		f.Close()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(err, "seeking part %d", part)
	}
	r := bufio.NewReader(f)
	row, end := in.rows[part], in.rows[part+1]
	return &sophie.IterateCloserStruct{
		NextF: func(key, val sophie.SophieReader) error {
			for row < end {
				line, _, err := readLine(r)
				if err != nil {
					if err == io.EOF {
						err = io.ErrUnexpectedEOF
					}
					return errors.WithStack(err)
				}
				if strings.TrimSpace(line) == "" {
					continue
				}
				*key.(*sophie.VInt) = sophie.VInt(row)
				*val.(*sophie.RawString) = sophie.RawString(line)
				row++
				return nil
			}
			return sophie.EOF
		},
		CloserF: f.Close,
	}, nil
}
