package bufferpool_test

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagecache/internal/bufferpool"
	"github.com/tuannm99/pagecache/internal/replacement"
	"github.com/tuannm99/pagecache/internal/storagefile"
)

func newPool(t *testing.T, numFrames int, strategy replacement.Strategy) *bufferpool.Pool {
	t.Helper()
	fs := afero.NewMemMapFs()
	p, err := bufferpool.Init(fs, "/db/test.page", numFrames, strategy)
	require.NoError(t, err)
	return p
}

// S1 - hit path, no I/O.
func TestPinHitDoesNotIncrementReads(t *testing.T) {
	p := newPool(t, 3, replacement.FIFO)

	h1, err := p.Pin(2)
	require.NoError(t, err)
	require.EqualValues(t, 1, p.NumReadIO())

	h2, err := p.Pin(2)
	require.NoError(t, err)
	require.EqualValues(t, 1, p.NumReadIO())
	require.Same(t, &h1.Data[0], &h2.Data[0])
}

// S2 - FIFO eviction, dirty write-back.
func TestFIFOEvictsOldestAndWritesBack(t *testing.T) {
	p := newPool(t, 2, replacement.FIFO)

	h0, err := p.Pin(0)
	require.NoError(t, err)
	require.NoError(t, p.MarkDirty(h0))
	h0.Data[0] = 'A'
	require.NoError(t, p.Unpin(h0))

	h1, err := p.Pin(1)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(h1))

	_, err = p.Pin(2)
	require.NoError(t, err)

	require.EqualValues(t, 1, p.NumWriteIO())
	require.EqualValues(t, 3, p.NumReadIO())

	contents := p.FrameContents()
	require.NotContains(t, contents, uint32(0))
}

// S3 - force_flush while pinned.
func TestForceFlushFlushesPinnedDirtyFrame(t *testing.T) {
	p := newPool(t, 2, replacement.FIFO)

	h0, err := p.Pin(0)
	require.NoError(t, err)
	require.NoError(t, p.MarkDirty(h0))
	h0.Data[0] = 'B'

	require.NoError(t, p.ForceFlush())
	require.EqualValues(t, 1, p.NumWriteIO())

	fixCounts := p.FixCounts()
	require.Equal(t, 1, fixCounts[0])

	dirty := p.DirtyFlags()
	require.False(t, dirty[0])
}

// S4 - shutdown refusal.
func TestShutdownRefusesWhilePinned(t *testing.T) {
	p := newPool(t, 2, replacement.FIFO)

	h0, err := p.Pin(0)
	require.NoError(t, err)

	err = p.Shutdown()
	require.ErrorIs(t, err, bufferpool.ErrPoolHasPinnedPages)

	require.NoError(t, p.Unpin(h0))
	require.NoError(t, p.Shutdown())
}

// S5 - no victim available.
func TestPinReturnsNoVictimAvailable(t *testing.T) {
	p := newPool(t, 1, replacement.FIFO)

	_, err := p.Pin(0)
	require.NoError(t, err)

	_, err = p.Pin(1)
	require.ErrorIs(t, err, bufferpool.ErrNoVictimAvailable)
}

// S6 - growth via ensure_capacity.
func TestPinBeyondEndOfFileGrowsFileAndZeroFills(t *testing.T) {
	p := newPool(t, 3, replacement.FIFO)

	h, err := p.Pin(9)
	require.NoError(t, err)
	for _, b := range h.Data {
		require.Zero(t, b)
	}
	require.EqualValues(t, 1, p.NumReadIO())
}

func TestUnpinUnknownPageIsPageNotResident(t *testing.T) {
	p := newPool(t, 2, replacement.FIFO)
	err := p.Unpin(&bufferpool.PageHandle{PageNum: 5})
	require.ErrorIs(t, err, bufferpool.ErrPageNotResident)
}

func TestUnpinUnderflow(t *testing.T) {
	p := newPool(t, 2, replacement.FIFO)
	h, err := p.Pin(0)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(h))
	err = p.Unpin(h)
	require.ErrorIs(t, err, bufferpool.ErrUnpinUnderflow)
}

func TestMarkDirtyNonResidentIsError(t *testing.T) {
	p := newPool(t, 2, replacement.FIFO)
	err := p.MarkDirty(&bufferpool.PageHandle{PageNum: 3})
	require.ErrorIs(t, err, bufferpool.ErrPageNotResident)
}

func TestForcePageNonResidentIsError(t *testing.T) {
	p := newPool(t, 2, replacement.FIFO)
	err := p.ForcePage(&bufferpool.PageHandle{PageNum: 3})
	require.ErrorIs(t, err, bufferpool.ErrPageNotResident)
}

// Law: pin/unpin idempotence on count.
func TestPinUnpinIdempotenceOnCount(t *testing.T) {
	p := newPool(t, 2, replacement.FIFO)

	h, err := p.Pin(0)
	require.NoError(t, err)
	_, err = p.Pin(0)
	require.NoError(t, err)
	_, err = p.Pin(0)
	require.NoError(t, err)

	require.NoError(t, p.Unpin(h))
	require.NoError(t, p.Unpin(h))
	require.NoError(t, p.Unpin(h))

	fixCounts := p.FixCounts()
	idx := -1
	for i, pn := range p.FrameContents() {
		if pn == 0 {
			idx = i
		}
	}
	require.Equal(t, 0, fixCounts[idx])
}

// Law: read-your-writes through the pool, across an eviction round-trip.
func TestReadYourWritesAcrossEviction(t *testing.T) {
	p := newPool(t, 1, replacement.FIFO)

	h, err := p.Pin(0)
	require.NoError(t, err)
	h.Data[0] = 'Z'
	require.NoError(t, p.MarkDirty(h))
	require.NoError(t, p.Unpin(h))

	// Force the only frame to be reused, evicting page 0's dirty buffer.
	h2, err := p.Pin(1)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(h2))

	h3, err := p.Pin(0)
	require.NoError(t, err)
	require.Equal(t, byte('Z'), h3.Data[0])
}

// Law: persistence across shutdown.
func TestPersistenceAcrossShutdown(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := bufferpool.Init(fs, "/db/test.page", 2, replacement.FIFO)
	require.NoError(t, err)

	h, err := p.Pin(0)
	require.NoError(t, err)
	h.Data[0] = 'Q'
	require.NoError(t, p.MarkDirty(h))
	require.NoError(t, p.Unpin(h))
	require.NoError(t, p.Shutdown())

	p2, err := bufferpool.Init(fs, "/db/test.page", 2, replacement.FIFO)
	require.NoError(t, err)
	h2, err := p2.Pin(0)
	require.NoError(t, err)
	require.Equal(t, byte('Q'), h2.Data[0])
}

func TestInitRejectsNonPositiveFrameCount(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := bufferpool.Init(fs, "/db/test.page", 0, replacement.FIFO)
	require.ErrorIs(t, err, bufferpool.ErrAllocFailed)
}

func TestPinAcrossAllStrategies(t *testing.T) {
	for _, s := range []replacement.Strategy{replacement.FIFO, replacement.LRU, replacement.Clock, replacement.LFU} {
		t.Run(s.String(), func(t *testing.T) {
			p := newPool(t, 2, s)
			h0, err := p.Pin(0)
			require.NoError(t, err)
			require.NoError(t, p.Unpin(h0))

			h1, err := p.Pin(1)
			require.NoError(t, err)
			require.NoError(t, p.Unpin(h1))

			h2, err := p.Pin(2)
			require.NoError(t, err)
			require.NoError(t, p.Unpin(h2))
		})
	}
}

func TestPageSizeMatchesStorageFile(t *testing.T) {
	p := newPool(t, 1, replacement.FIFO)
	h, err := p.Pin(0)
	require.NoError(t, err)
	require.Len(t, h.Data, storagefile.PageSize)
}

func TestErrorsAreDistinguishable(t *testing.T) {
	require.False(t, errors.Is(bufferpool.ErrPageNotResident, bufferpool.ErrUnpinUnderflow))
}
