package mr

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/golangplus/bytes"
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/kv"
	"github.com/daviddengcn/mrkmeans/sophie"
)

// ReduceIterator is an object for Sort to call Reducer.
type ReduceIterator interface {
	// Iterate calls Reducer.Reduce for each key.
	Iterate(c []sophie.Collector, r Reducer) error
}

// A Sorter is responsible for receiving all kv pairs from Mappers, sort them
// and send to Reducers. Pairs with equal keys keep the order they were
// collected in by one PartCollector.
type Sorter interface {
	// NewPartCollector returns a PartCollector for receiving kv pairs from
	// Mappers.
	NewPartCollector(inPart int) (PartCollector, error)
	// ClosePartCollectors closes all PartCollectors opened. This should be
	// called when all kv pairs have been collected.
	ClosePartCollectors() error
	// Returns a sorted slice of integers of all the partition indexes.
	ReduceParts() []int
	// NewReduceIterator creates and returns a ReduceIterator for a partition.
	NewReduceIterator(part int) (ReduceIterator, error)
}

/*
 * MemSorters
 */

type memSorter struct {
	sync.Mutex
	Buffer  bytesp.Slice
	KeyOffs []int
	ValOffs []int
	ValEnds []int
}

func (ms *memSorter) Len() int {
	return len(ms.KeyOffs)
}

func (ms *memSorter) Less(i, j int) bool {
	si := ms.Buffer[ms.KeyOffs[i]:ms.ValOffs[i]]
	sj := ms.Buffer[ms.KeyOffs[j]:ms.ValOffs[j]]
	return bytes.Compare(si, sj) < 0
}

func (ms *memSorter) Swap(i, j int) {
	ms.KeyOffs[i], ms.KeyOffs[j] = ms.KeyOffs[j], ms.KeyOffs[i]
	ms.ValOffs[i], ms.ValOffs[j] = ms.ValOffs[j], ms.ValOffs[i]
	ms.ValEnds[i], ms.ValEnds[j] = ms.ValEnds[j], ms.ValEnds[i]
}

func (ms *memSorter) key(idx int) bytesp.Slice {
	return ms.Buffer[ms.KeyOffs[idx]:ms.ValOffs[idx]]
}

func (ms *memSorter) Iterate(c []sophie.Collector, r Reducer) error {
	key, val := r.NewKey(), r.NewVal()
	for idx := 0; idx < len(ms.KeyOffs); {
		keyBuf := ms.key(idx)
		if err := key.ReadFrom(&keyBuf, len(keyBuf)); err != nil {
			return err
		}

		curVal := idx
		idx++

		valIter := func() (sophie.Sophier, error) {
			if curVal < 0 {
				// not values for this key, return EOF
				return nil, sophie.EOF
			}
			// fetch value
			valBuf := ms.Buffer[ms.ValOffs[curVal]:ms.ValEnds[curVal]]
			if err := val.ReadFrom(&valBuf, len(valBuf)); err != nil {
				return nil, err
			}
			curVal = -1

			if idx < len(ms.KeyOffs) && bytes.Equal(ms.key(idx-1), ms.key(idx)) {
				// same key, prepare next value
				curVal = idx
				idx++
			}
			return val, nil
		}

		if err := r.Reduce(key, valIter, c); err != nil {
			return err
		}
		// iterate to end in case the reducer doesn't
		for curVal >= 0 {
			if _, err := valIter(); err != nil {
				if err != sophie.EOF {
					return err
				}
			}
		}
	}

	return r.ReduceEnd(c)
}

// MemSorters is a Sorter that stores all kv pairs in memory.
type MemSorters struct {
	sync.RWMutex
	sorters map[int]*memSorter
}

// NewMemSorters creates a new *MemSorters.
func NewMemSorters() *MemSorters {
	return &MemSorters{
		sorters: make(map[int]*memSorter),
	}
}

// PartCollector interface
func (ms *MemSorters) CollectTo(part int, key, val sophie.SophieWriter) error {
	ms.RLock()
	sorter, ok := ms.sorters[part]
	ms.RUnlock()
	if !ok {
		ms.Lock()
		sorter, ok = ms.sorters[part]
		if !ok {
			sorter = &memSorter{}
			ms.sorters[part] = sorter
		}
		ms.Unlock()
	}
	sorter.Lock()
	defer sorter.Unlock()

	keyOff := len(sorter.Buffer)
	if err := key.WriteTo(&sorter.Buffer); err != nil {
		sorter.Buffer = sorter.Buffer[:keyOff]
		return err
	}
	valOff := len(sorter.Buffer)
	if err := val.WriteTo(&sorter.Buffer); err != nil {
		sorter.Buffer = sorter.Buffer[:keyOff]
		return err
	}
	sorter.KeyOffs = append(sorter.KeyOffs, keyOff)
	sorter.ValOffs = append(sorter.ValOffs, valOff)
	sorter.ValEnds = append(sorter.ValEnds, len(sorter.Buffer))

	return nil
}

// Sorter interface
func (ms *MemSorters) NewPartCollector(int) (PartCollector, error) {
	// MemSorters itself is the PartCollector
	return ms, nil
}

// Sorter interface
func (*MemSorters) ClosePartCollectors() error {
	return nil
}

// Sorter interface
func (ms *MemSorters) ReduceParts() []int {
	ms.RLock()
	defer ms.RUnlock()

	parts := make([]int, 0, len(ms.sorters))
	for part := range ms.sorters {
		parts = append(parts, part)
	}
	sort.Ints(parts)
	return parts
}

// Sorter interface
func (ms *MemSorters) NewReduceIterator(part int) (ReduceIterator, error) {
	ms.RLock()
	sorter, ok := ms.sorters[part]
	ms.RUnlock()
	if !ok {
		return nil, errors.Errorf("no pairs collected for part %d", part)
	}
	sort.Stable(sorter)
	return sorter, nil
}

/*
 * FileSorter
 */

type mapOut struct {
	sync.Mutex
	rawPath sophie.FsPath
	writer  *kv.Writer
	reader  *kv.Reader
}

func (mo *mapOut) Collect(key, val sophie.SophieWriter) error {
	mo.Lock()
	defer mo.Unlock()

	return mo.writer.Collect(key, val)
}

func sophieCmp(a, b sophie.SophieWriter) int {
	var bufA, bufB bytesp.Slice
	a.WriteTo(&bufA)
	b.WriteTo(&bufB)
	return bytes.Compare(bufA, bufB)
}

func (mo *mapOut) Iterate(c []sophie.Collector, r Reducer) error {
	defer mo.reader.Close()

	key, val := r.NewKey(), r.NewVal()
	err := mo.reader.Next(key, val)
	if err != nil {
		if err == sophie.EOF {
			// empty input
			return r.ReduceEnd(c)
		}
		return err
	}

	nextKey, nextVal := r.NewKey(), r.NewVal()
	for {
		curVal := val
		valIter := func() (s sophie.Sophier, err error) {
			if curVal == nil {
				return nil, sophie.EOF
			}
			s, curVal = curVal, nil

			err = mo.reader.Next(nextKey, nextVal)
			if err != nil {
				if err != sophie.EOF {
					return s, err
				}
				// all key/val read
				nextKey, nextVal = nil, nil
			}
			if nextKey != nil && sophieCmp(key, nextKey) == 0 {
				curVal = nextVal
				val, nextVal = nextVal, val
			}
			return s, nil
		}
		if err := r.Reduce(key, valIter, c); err != nil {
			return err
		}
		// r.Reduce could return before iterating all values
		for curVal != nil {
			if _, err := valIter(); err != nil {
				if err != sophie.EOF {
					return err
				}
			}
		}
		if nextKey == nil {
			break
		}
		key, nextKey = nextKey, key
		val, nextVal = nextVal, val
	}

	return r.ReduceEnd(c)
}

// FileSorter is a Sorter that stores mapped kv pairs in a TmpFolder and will
// read to memory, sort and reduce.
type FileSorter struct {
	sync.RWMutex
	TmpFolder sophie.FsPath
	mapOuts   map[int]*mapOut
	sortToken chan bool
}

const (
	pathMapOut = "mapOut"
	pathSorted = "sorted"
	fmtPart    = "part-%05d"
)

// NewFileSorter returns a FileSorter spilling to TmpFolder. At most two
// parts are sorted in memory at the same time.
func NewFileSorter(TmpFolder sophie.FsPath) *FileSorter {
	sortToken := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		sortToken <- true
	}
	TmpFolder.Join(pathMapOut).Remove()
	TmpFolder.Join(pathSorted).Remove()
	return &FileSorter{
		TmpFolder: TmpFolder,
		mapOuts:   make(map[int]*mapOut),
		sortToken: sortToken,
	}
}

// PartCollector interface
func (fs *FileSorter) CollectTo(part int, key, val sophie.SophieWriter) error {
	fs.RLock()
	mo, ok := fs.mapOuts[part]
	fs.RUnlock()
	if !ok {
		fs.Lock()
		mo, ok = fs.mapOuts[part]
		if !ok {
			fldMapOut := fs.TmpFolder.Join(pathMapOut)
			if err := fldMapOut.Mkdir(0755); err != nil {
				fs.Unlock()
				return errors.WithStack(err)
			}
			path := fldMapOut.Join(fmt.Sprintf(fmtPart, part))

			writer, err := kv.NewWriter(path)
			if err != nil {
				fs.Unlock()
				return err
			}
			mo = &mapOut{rawPath: path, writer: writer}
			fs.mapOuts[part] = mo
		}
		fs.Unlock()
	}
	return mo.Collect(key, val)
}

// Sorter interface
func (fs *FileSorter) NewPartCollector(int) (PartCollector, error) {
	return fs, nil
}

// Sorter interface
func (fs *FileSorter) ClosePartCollectors() (err error) {
	fs.Lock()
	defer fs.Unlock()

	for _, mo := range fs.mapOuts {
		if e := mo.writer.Close(); e != nil {
			err = e
		}
	}
	return err
}

// Sorter interface
func (fs *FileSorter) ReduceParts() []int {
	fs.RLock()
	defer fs.RUnlock()

	parts := make([]int, 0, len(fs.mapOuts))
	for part := range fs.mapOuts {
		parts = append(parts, part)
	}
	sort.Ints(parts)
	return parts
}

type offsSorter struct {
	Buffer           bytesp.Slice
	KeyOffs, KeyEnds []int
	ValOffs, ValEnds []int
}

func (os *offsSorter) Len() int {
	return len(os.KeyOffs)
}

func (os *offsSorter) Less(i, j int) bool {
	si := os.Buffer[os.KeyOffs[i]:os.KeyEnds[i]]
	sj := os.Buffer[os.KeyOffs[j]:os.KeyEnds[j]]
	return bytes.Compare(si, sj) < 0
}

func (os *offsSorter) Swap(i, j int) {
	os.KeyOffs[i], os.KeyOffs[j] = os.KeyOffs[j], os.KeyOffs[i]
	os.KeyEnds[i], os.KeyEnds[j] = os.KeyEnds[j], os.KeyEnds[i]
	os.ValOffs[i], os.ValOffs[j] = os.ValOffs[j], os.ValOffs[i]
	os.ValEnds[i], os.ValEnds[j] = os.ValEnds[j], os.ValEnds[i]
}

// Sorter interface
func (fs *FileSorter) NewReduceIterator(part int) (ReduceIterator, error) {
	fs.RLock()
	mo, ok := fs.mapOuts[part]
	fs.RUnlock()
	if !ok {
		return nil, errors.Errorf("no pairs collected for part %d", part)
	}
	// Request for a sort token
	<-fs.sortToken
	defer func() {
		// Return the sort token back
		fs.sortToken <- true
	}()

	// read
	var os offsSorter
	var err error
	os.Buffer, os.KeyOffs, os.KeyEnds, os.ValOffs, os.ValEnds, err =
		kv.ReadAsByteOffs(mo.rawPath)
	if err != nil {
		return nil, err
	}
	// sort
	sort.Stable(&os)
	// save
	fldSorted := fs.TmpFolder.Join(pathSorted)
	if err := fldSorted.Mkdir(0755); err != nil {
		return nil, errors.WithStack(err)
	}
	redIn := fldSorted.Join(fmt.Sprintf(fmtPart, part))
	if err := kv.WriteByteOffs(redIn, os.Buffer, os.KeyOffs, os.KeyEnds,
		os.ValOffs, os.ValEnds); err != nil {
		return nil, err
	}

	mo.reader, err = kv.NewReader(redIn)
	if err != nil {
		return nil, err
	}

	return mo, nil
}

// Clean removes the spill files.
func (fs *FileSorter) Clean() error {
	return errors.WithStack(fs.TmpFolder.Remove())
}
