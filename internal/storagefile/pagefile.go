// Package storagefile implements the Storage Manager collaborator consumed
// by the buffer pool: a page-addressed, segment-split file on top of an
// afero.Fs. The buffer pool never looks inside the bytes this package hands
// back; it only asks for block N and writes block N back.
package storagefile

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// PageFile is an open, page-addressed file. A logical page number maps to
// (segment, offset) the way internal/storage/sm.go in the reference
// implementation this package is adapted from lays out segments.
type PageFile struct {
	fs   afero.Fs
	dir  string
	base string

	mu       sync.Mutex
	segments map[int32]afero.File
	closed   bool

	cursor uint32 // current block position for the sequential-scan helpers
}

// Create creates an empty page file (and its directory) at path. It is an
// error for the file to already exist.
func Create(fs afero.Fs, path string) error {
	dir, _ := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, DirMode0755); err != nil {
		return wrapErr("create", err)
	}
	if exists, err := afero.Exists(fs, path); err != nil {
		return wrapErr("create", err)
	} else if exists {
		return wrapErr("create", fmt.Errorf("%s already exists", path))
	}
	f, err := fs.OpenFile(path, osCreateFlags(), FileMode0664)
	if err != nil {
		return wrapErr("create", err)
	}
	return f.Close()
}

// Open opens an existing page file for reading and writing.
func Open(fs afero.Fs, path string) (*PageFile, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	pf := &PageFile{
		fs:       fs,
		dir:      dir,
		base:     base,
		segments: make(map[int32]afero.File),
	}
	// Eagerly open segment 0 to fail fast if the file is missing.
	if _, err := pf.segmentFile(0); err != nil {
		return nil, wrapErr("open", err)
	}
	return pf, nil
}

// Destroy removes every segment of the page file at path.
func Destroy(fs afero.Fs, path string) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	segs, err := listSegments(fs, dir, base)
	if err != nil {
		return wrapErr("destroy", err)
	}
	for _, segNo := range segs {
		if err := fs.Remove(segmentPath(dir, base, segNo)); err != nil {
			return wrapErr("destroy", err)
		}
	}
	return nil
}

func (pf *PageFile) segmentPath(segNo int32) string {
	return segmentPath(pf.dir, pf.base, segNo)
}

func segmentPath(dir, base string, segNo int32) string {
	name := base
	if segNo > 0 {
		name = fmt.Sprintf("%s.%d", base, segNo)
	}
	return filepath.Join(dir, name)
}

// segmentFile returns (opening if necessary) the handle for segNo. Caller
// must hold pf.mu.
func (pf *PageFile) segmentFile(segNo int32) (afero.File, error) {
	if f, ok := pf.segments[segNo]; ok {
		return f, nil
	}
	path := pf.segmentPath(segNo)
	if err := pf.fs.MkdirAll(pf.dir, DirMode0755); err != nil {
		return nil, err
	}
	f, err := pf.fs.OpenFile(path, osCreateFlags(), FileMode0664)
	if err != nil {
		return nil, err
	}
	pf.segments[segNo] = f
	return f, nil
}

func locate(pageNo uint32) (segNo int32, offset int64) {
	pps := pagesPerSegment()
	segNo = int32(pageNo / pps)
	pageInSeg := pageNo % pps
	offset = int64(pageInSeg) * PageSize
	return segNo, offset
}

// ReadBlock reads exactly PageSize bytes for pageNo into buf. Reading past
// the current end of file zero-fills the remainder instead of failing, so
// that EnsureCapacity followed by ReadBlock behaves like a freshly
// zero-extended file.
func (pf *PageFile) ReadBlock(pageNo uint32, buf []byte) error {
	if len(buf) != PageSize {
		return wrapErr("read_block", fmt.Errorf("buffer must be exactly %d bytes, got %d", PageSize, len(buf)))
	}

	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.closed {
		return wrapErr("read_block", ErrPageFileNotOpen)
	}

	segNo, off := locate(pageNo)
	f, err := pf.segmentFile(segNo)
	if err != nil {
		return wrapErr("read_block", err)
	}

	n, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return wrapErr("read_block", err)
	}
	for i := n; i < PageSize; i++ {
		buf[i] = 0
	}
	pf.cursor = pageNo
	return nil
}

// WriteBlock writes exactly PageSize bytes for pageNo from buf to disk.
func (pf *PageFile) WriteBlock(pageNo uint32, buf []byte) error {
	if len(buf) != PageSize {
		return wrapErr("write_block", fmt.Errorf("buffer must be exactly %d bytes, got %d", PageSize, len(buf)))
	}

	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.closed {
		return wrapErr("write_block", ErrPageFileNotOpen)
	}

	segNo, off := locate(pageNo)
	f, err := pf.segmentFile(segNo)
	if err != nil {
		return wrapErr("write_block", err)
	}

	n, err := f.WriteAt(buf, off)
	if err != nil {
		return wrapErr("write_block", err)
	}
	if n != PageSize {
		return wrapErr("write_block", io.ErrShortWrite)
	}
	pf.cursor = pageNo
	return nil
}

// EnsureCapacity grows the page file so that it holds at least nPages
// zero-filled pages, without touching pages that already exist.
func (pf *PageFile) EnsureCapacity(nPages uint32) error {
	total, err := pf.TotalPages()
	if err != nil {
		return err
	}
	zero := make([]byte, PageSize)
	for p := total; p < nPages; p++ {
		if err := pf.WriteBlock(p, zero); err != nil {
			return wrapErr("ensure_capacity", err)
		}
	}
	return nil
}

// AppendEmptyBlock appends one zero-filled page at the current end of file.
func (pf *PageFile) AppendEmptyBlock() error {
	total, err := pf.TotalPages()
	if err != nil {
		return err
	}
	return pf.EnsureCapacity(total + 1)
}

// TotalPages scans every segment on disk and returns the total page count.
func (pf *PageFile) TotalPages() (uint32, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.closed {
		return 0, wrapErr("total_num_pages", ErrPageFileNotOpen)
	}

	segs, err := listSegments(pf.fs, pf.dir, pf.base)
	if err != nil {
		return 0, wrapErr("total_num_pages", err)
	}

	var total uint32
	pps := pagesPerSegment()
	for _, segNo := range segs {
		f, err := pf.segmentFile(segNo)
		if err != nil {
			return 0, wrapErr("total_num_pages", err)
		}
		info, err := f.Stat()
		if err != nil {
			return 0, wrapErr("total_num_pages", err)
		}
		size := info.Size()
		if size <= 0 {
			continue
		}
		pages := uint32(size / PageSize)
		if end := uint32(segNo)*pps + pages; end > total {
			total = end
		}
	}
	return total, nil
}

// BlockPosition returns the page number most recently touched by ReadBlock,
// WriteBlock, or one of the sequential-scan helpers below.
func (pf *PageFile) BlockPosition() uint32 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.cursor
}

// ReadFirstBlock reads page 0 and repositions the cursor there.
func (pf *PageFile) ReadFirstBlock(buf []byte) error { return pf.ReadBlock(0, buf) }

// ReadCurrentBlock re-reads the page at the current cursor position.
func (pf *PageFile) ReadCurrentBlock(buf []byte) error { return pf.ReadBlock(pf.BlockPosition(), buf) }

// ReadNextBlock reads the page after the current cursor position.
func (pf *PageFile) ReadNextBlock(buf []byte) error {
	return pf.ReadBlock(pf.BlockPosition()+1, buf)
}

// ReadPreviousBlock reads the page before the current cursor position.
func (pf *PageFile) ReadPreviousBlock(buf []byte) error {
	pos := pf.BlockPosition()
	if pos == 0 {
		return wrapErr("read_previous_block", fmt.Errorf("already at page 0"))
	}
	return pf.ReadBlock(pos-1, buf)
}

// Sync flushes every open segment's OS-level buffers to disk.
func (pf *PageFile) Sync() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.closed {
		return wrapErr("sync", ErrPageFileNotOpen)
	}

	for _, f := range pf.segments {
		if s, ok := f.(interface{ Sync() error }); ok {
			if err := s.Sync(); err != nil {
				return wrapErr("sync", err)
			}
		}
	}
	return nil
}

// Close releases every open segment handle. The PageFile must not be used
// afterwards; a second Close fails with ErrPageFileNotOpen.
func (pf *PageFile) Close() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.closed {
		return wrapErr("close", ErrPageFileNotOpen)
	}

	for segNo, f := range pf.segments {
		if err := f.Close(); err != nil {
			return wrapErr("close", err)
		}
		delete(pf.segments, segNo)
	}
	pf.closed = true
	return nil
}
