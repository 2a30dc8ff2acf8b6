package kmeans

import (
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/kv"
	"github.com/daviddengcn/mrkmeans/mr"
	"github.com/daviddengcn/mrkmeans/record"
	"github.com/daviddengcn/mrkmeans/sophie"
)

const (
	recordsDir = "records"
	labelsDir  = "labels"
)

// Dataset is an imported input: kv partitions keyed by *sophie.VInt row
// index with *record.Record values of count 1. Partitions hold contiguous
// row ranges in ascending order.
type Dataset struct {
	Records sophie.FsPath
	Rows    int
	Dim     int
	// Labels[row] is the ground-truth label of the row, "" if the row has
	// none. nil if the input has no label column.
	Labels []string
}

// Input returns the record partitions as an mr.Input.
func (ds *Dataset) Input() mr.Input {
	return kv.DirInput(ds.Records)
}

// ForEach calls f for every row in row order, stopping early if f returns
// mr.EOM.
func (ds *Dataset) ForEach(f func(row int, r record.Record) error) error {
	in := ds.Input()
	n, err := in.PartCount()
	if err != nil {
		return err
	}
	var key sophie.VInt
	var val record.Record
	for part := 0; part < n; part++ {
		it, err := in.Iterator(part)
		if err != nil {
			return err
		}
		for {
			if err := it.Next(&key, &val); err != nil {
				if errors.Cause(err) == sophie.EOF {
					break
				}
				it.Close()
				return err
			}
			if err := f(int(key), val); err != nil {
				it.Close()
				if errors.Cause(err) == mr.EOM {
					return nil
				}
				return err
			}
		}
		if err := it.Close(); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// ReadAll returns all records in row order.
func (ds *Dataset) ReadAll() ([]record.Record, error) {
	recs := make([]record.Record, 0, ds.Rows)
	err := ds.ForEach(func(row int, r record.Record) error {
		recs = append(recs, r.Copy())
		return nil
	})
	return recs, err
}

// splitLine separates the feature fields from the label. The last field is
// a label if labelColumn is set and it is not a number.
func splitLine(line string, labelColumn bool) (fields []string, label string, hasLabel bool) {
	fields = strings.Split(line, ",")
	if !labelColumn || len(fields) < 2 {
		return fields, "", false
	}
	last := strings.TrimSpace(fields[len(fields)-1])
	if _, err := strconv.ParseFloat(last, 64); err == nil {
		return fields, "", false
	}
	return fields[:len(fields)-1], last, true
}

// importer parses rows in parallel and checks they agree on the dimension.
type importer struct {
	sync.Mutex
	dim      int
	dimRow   int
	hasLabel bool
}

func (im *importer) checkDim(row, dim int) error {
	im.Lock()
	defer im.Unlock()
	if im.dim == 0 {
		im.dim, im.dimRow = dim, row
		return nil
	}
	if im.dim != dim {
		return configErrorf("row %d has %d features, row %d has %d", row, dim, im.dimRow, im.dim)
	}
	return nil
}

func (im *importer) newMapper(labelColumn bool) mr.OnlyMapper {
	return &mr.OnlyMapperStruct{
		NewKeyF: sophie.NewVInt,
		NewValF: sophie.NewRawString,
		MapF: func(key, val sophie.SophieWriter, c []sophie.Collector) error {
			row := int(*key.(*sophie.VInt))
			line := string(*val.(*sophie.RawString))

			fields, label, hasLabel := splitLine(line, labelColumn)
			rec, err := record.Parse(fields)
			if err != nil {
				return errors.Wrapf(ErrConfiguration, "row %d: %v", row, err)
			}
			if err := im.checkDim(row, rec.Dim()); err != nil {
				return err
			}
			if hasLabel {
				im.Lock()
				im.hasLabel = true
				im.Unlock()
				if err := c[1].Collect(sophie.VInt(row), sophie.String(label)); err != nil {
					return err
				}
			}
			return c[0].Collect(sophie.VInt(row), rec)
		},
	}
}

// readLabels reads the labels written by Import. Rows without a label get
// "".
func readLabels(fp sophie.FsPath, rows int) ([]string, error) {
	in := kv.DirInput(fp)
	n, err := in.PartCount()
	if err != nil {
		return nil, err
	}
	labels := make([]string, rows)
	var row sophie.VInt
	var label sophie.String
	for part := 0; part < n; part++ {
		it, err := in.Iterator(part)
		if err != nil {
			return nil, err
		}
		for {
			if err := it.Next(&row, &label); err != nil {
				if errors.Cause(err) == sophie.EOF {
					break
				}
				it.Close()
				return nil, err
			}
			if int(row) < 0 || int(row) >= rows {
				it.Close()
				return nil, errors.Errorf("label of row %d out of range [0, %d)", row, rows)
			}
			labels[row] = label.Val()
		}
		if err := it.Close(); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return labels, nil
}

// Import splits the text file src into cfg.Partitions row ranges, parses
// every row and writes the records, with any labels, under dir. A malformed
// row fails the import with an error caused by ErrConfiguration.
func Import(cfg Config, src, dir sophie.FsPath) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	in, err := NewTextInput(src, cfg.Partitions, cfg.DatasetSize)
	if err != nil {
		return nil, err
	}
	rows := in.Rows()
	if cfg.DatasetSize > rows {
		return nil, configErrorf("dataset size %d larger than the %d rows of %v", cfg.DatasetSize, rows, src.Path)
	}
	if cfg.K >= rows {
		return nil, configErrorf("k (%d) must be less than the dataset size (%d)", cfg.K, rows)
	}

	out := kv.DirOutput(dir.Join(recordsDir))
	if err := out.Clean(); err != nil {
		return nil, err
	}
	labelsOut := kv.DirOutput(dir.Join(labelsDir))
	if err := labelsOut.Clean(); err != nil {
		return nil, err
	}
	im := &importer{}
	job := mr.MapOnlyJob{
		Source: []mr.Input{in},
		NewMapperF: func(src, part int) mr.OnlyMapper {
			return im.newMapper(cfg.LabelColumn)
		},
		Dest:    []mr.Output{out, labelsOut},
		Workers: cfg.Workers,
	}
	if err := job.Run(); err != nil {
		return nil, err
	}

	ds := &Dataset{
		Records: sophie.FsPath(out),
		Rows:    rows,
		Dim:     im.dim,
	}
	if im.hasLabel {
		if ds.Labels, err = readLabels(sophie.FsPath(labelsOut), rows); err != nil {
			return nil, err
		}
	}
	log.Printf("Imported %d rows of dimension %d from %v", ds.Rows, ds.Dim, src.Path)
	return ds, nil
}
