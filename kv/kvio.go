package kv

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/sophie"
)

// PartName returns the file name of the index-th part in a kv folder.
func PartName(index int) string {
	return fmt.Sprintf("part-%05d", index)
}

/*
A folder with KV Files as an mr.Input
*/
type DirInput sophie.FsPath

// mr.Input interface
func (in DirInput) PartCount() (int, error) {
	infos, err := in.Fs.ReadDir(in.Path)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return len(infos), nil
}

// mr.Input interface
func (in DirInput) Iterator(index int) (sophie.IterateCloser, error) {
	infos, err := in.Fs.ReadDir(in.Path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if index < 0 || index >= len(infos) {
		return nil, errors.Errorf("part %d out of range [0, %d)", index, len(infos))
	}

	return NewReader(sophie.FsPath(in).Join(infos[index].Name()))
}

/*
A folder with KV Files as an Output
*/
type DirOutput sophie.FsPath

// mr.Output interface
func (out DirOutput) Collector(index int) (sophie.CollectCloser, error) {
	if err := out.Fs.Mkdir(out.Path, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	return NewWriter(sophie.FsPath(out).Join(PartName(index)))
}

// Clean removes the folder.
func (out DirOutput) Clean() error {
	return errors.WithStack(sophie.FsPath(out).Remove())
}
