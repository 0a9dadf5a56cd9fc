// Package bufferpool implements the Frame Table, Pin Registry, and Pool
// Controller on top of internal/storagefile and internal/replacement.
package bufferpool

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/atomic"

	"github.com/tuannm99/pagecache/internal/replacement"
	"github.com/tuannm99/pagecache/internal/storagefile"
)

var logDebugPrefix = "bufferpool: "

// Pool is a fixed-size buffer pool bound to one page file. Its zero value is
// not usable; construct one with Init.
type Pool struct {
	mu sync.Mutex

	pageFileName string
	pf           *storagefile.PageFile
	policy       replacement.Policy

	frames    []Frame
	pageTable map[uint32]int // resident page number -> frame index

	reads  atomic.Uint64
	writes atomic.Uint64
}

// Init allocates the frame table and opens the backing page file, creating
// it first if it does not already exist. strategy selects the replacement
// policy used once every frame is resident.
func Init(fs afero.Fs, fileName string, numFrames int, strategy replacement.Strategy) (*Pool, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("%w: numFrames must be positive, got %d", ErrAllocFailed, numFrames)
	}

	if exists, err := afero.Exists(fs, fileName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocFailed, err)
	} else if !exists {
		if err := storagefile.Create(fs, fileName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAllocFailed, err)
		}
	}

	pf, err := storagefile.Open(fs, fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocFailed, err)
	}

	frames := make([]Frame, numFrames)
	for i := range frames {
		frames[i] = emptyFrame()
	}

	p := &Pool{
		pageFileName: fileName,
		pf:           pf,
		policy:       replacement.New(strategy, numFrames),
		frames:       frames,
		pageTable:    make(map[uint32]int, numFrames),
	}
	slog.Debug(logDebugPrefix+"init", "file", fileName, "numFrames", numFrames, "strategy", strategy.String())
	return p, nil
}

// Shutdown fails with ErrPoolHasPinnedPages if any frame is still pinned.
// Otherwise it flushes every dirty frame, closes the page file, and frees
// the frame table. The Pool must not be used afterward.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.frames {
		if p.frames[i].FixCount > 0 {
			return fmt.Errorf("%w: frame %d holds page %d with fix count %d",
				ErrPoolHasPinnedPages, i, p.frames[i].ResidentPage, p.frames[i].FixCount)
		}
	}

	if err := p.forceFlushLocked(); err != nil {
		return err
	}

	if err := p.pf.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	p.frames = nil
	p.pageTable = nil
	slog.Debug(logDebugPrefix+"shutdown complete", "file", p.pageFileName)
	return nil
}

// Pin returns a handle to pageNo, loading it from disk on a miss and
// evicting a victim frame if the pool is already full.
func (p *Pool) Pin(pageNo uint32) (*PageHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pageNo == NoPage {
		return nil, fmt.Errorf("bufferpool: page %d is the NoPage sentinel and cannot be pinned", pageNo)
	}

	if idx, ok := p.pageTable[pageNo]; ok {
		f := &p.frames[idx]
		f.FixCount++
		p.policy.OnHit(idx)
		slog.Debug(logDebugPrefix+"pin hit", "pageNo", pageNo, "frame", idx, "fixCount", f.FixCount)
		return &PageHandle{PageNum: pageNo, Data: f.Buffer}, nil
	}

	if idx, ok := p.anyEmpty(); ok {
		buf, err := p.readPage(pageNo)
		if err != nil {
			return nil, err
		}
		p.admit(idx, pageNo, buf)
		p.policy.OnAdmit(idx)
		slog.Debug(logDebugPrefix+"pin miss, empty frame", "pageNo", pageNo, "frame", idx)
		return &PageHandle{PageNum: pageNo, Data: p.frames[idx].Buffer}, nil
	}

	victimIdx, ok := p.policy.SelectVictim(func(i int) bool { return p.frames[i].FixCount > 0 })
	if !ok {
		return nil, fmt.Errorf("%w: requested page %d", ErrNoVictimAvailable, pageNo)
	}

	victim := &p.frames[victimIdx]
	if victim.Dirty {
		if err := p.pf.WriteBlock(victim.ResidentPage, victim.Buffer); err != nil {
			return nil, fmt.Errorf("%w: evicting page %d: %v", ErrIO, victim.ResidentPage, err)
		}
		p.writes.Inc()
		victim.Dirty = false
	}

	// Load the new page before committing any eviction side effect. If
	// this fails, the victim frame must stay exactly as it was (resident,
	// registered in pageTable, known to the policy) rather than being left
	// evicted-but-not-readmitted: that state is neither resident nor empty
	// nor selectable by any policy, and would permanently strand the frame.
	buf, err := p.readPage(pageNo)
	if err != nil {
		return nil, err
	}

	delete(p.pageTable, victim.ResidentPage)
	p.policy.OnEvict(victimIdx)
	p.admit(victimIdx, pageNo, buf)
	p.policy.OnAdmit(victimIdx)
	slog.Debug(logDebugPrefix+"pin miss, evicted victim", "pageNo", pageNo, "frame", victimIdx)
	return &PageHandle{PageNum: pageNo, Data: p.frames[victimIdx].Buffer}, nil
}

// readPage grows the page file to cover pageNo and reads its block into a
// freshly allocated buffer. Caller must hold p.mu.
func (p *Pool) readPage(pageNo uint32) ([]byte, error) {
	if err := p.pf.EnsureCapacity(pageNo + 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	buf := make([]byte, storagefile.PageSize)
	if err := p.pf.ReadBlock(pageNo, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	p.reads.Inc()
	return buf, nil
}

// admit registers frame idx as resident for pageNo with buf as its buffer.
// Caller must hold p.mu.
func (p *Pool) admit(idx int, pageNo uint32, buf []byte) {
	p.frames[idx] = Frame{
		ResidentPage: pageNo,
		FixCount:     1,
		Dirty:        false,
		Buffer:       buf,
	}
	p.pageTable[pageNo] = idx
}

func (p *Pool) anyEmpty() (int, bool) {
	for i := range p.frames {
		if p.frames[i].isEmpty() {
			return i, true
		}
	}
	return 0, false
}

// Unpin decrements the fix count on the frame holding handle.PageNum.
func (p *Pool) Unpin(handle *PageHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[handle.PageNum]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotResident, handle.PageNum)
	}
	f := &p.frames[idx]
	if f.FixCount == 0 {
		return fmt.Errorf("%w: page %d", ErrUnpinUnderflow, handle.PageNum)
	}
	f.FixCount--
	slog.Debug(logDebugPrefix+"unpin", "pageNo", handle.PageNum, "frame", idx, "fixCount", f.FixCount)
	return nil
}

// MarkDirty marks the frame holding handle.PageNum dirty.
func (p *Pool) MarkDirty(handle *PageHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[handle.PageNum]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotResident, handle.PageNum)
	}
	p.frames[idx].Dirty = true
	return nil
}

// ForcePage writes the frame holding handle.PageNum back to disk and clears
// its dirty bit, regardless of fix count.
func (p *Pool) ForcePage(handle *PageHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[handle.PageNum]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotResident, handle.PageNum)
	}
	f := &p.frames[idx]
	if err := p.pf.WriteBlock(f.ResidentPage, f.Buffer); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	p.writes.Inc()
	f.Dirty = false
	return nil
}

// ForceFlush writes back every dirty frame, pinned or not, aborting at the
// first I/O failure.
func (p *Pool) ForceFlush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forceFlushLocked()
}

func (p *Pool) forceFlushLocked() error {
	for i := range p.frames {
		f := &p.frames[i]
		if f.isEmpty() || !f.Dirty {
			continue
		}
		if err := p.pf.WriteBlock(f.ResidentPage, f.Buffer); err != nil {
			return fmt.Errorf("%w: flushing page %d: %v", ErrIO, f.ResidentPage, err)
		}
		p.writes.Inc()
		f.Dirty = false
	}
	return nil
}

// FrameContents returns the resident page identifier for every frame,
// NoPage for empty slots.
func (p *Pool) FrameContents() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.ResidentPage
	}
	return out
}

// DirtyFlags returns the dirty bit for every frame.
func (p *Pool) DirtyFlags() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bool, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.Dirty
	}
	return out
}

// FixCounts returns the fix count for every frame.
func (p *Pool) FixCounts() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.FixCount
	}
	return out
}

// NumReadIO returns the number of disk blocks read so far.
func (p *Pool) NumReadIO() uint64 { return p.reads.Load() }

// NumWriteIO returns the number of disk blocks written so far.
func (p *Pool) NumWriteIO() uint64 { return p.writes.Load() }

// SyncSegments flushes the page file's OS-level buffers, for use by a
// periodic checkpoint worker outside the pin/unpin hot path.
func (p *Pool) SyncSegments() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pf.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
