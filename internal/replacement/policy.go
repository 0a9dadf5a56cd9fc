// Package replacement implements pluggable buffer pool victim-selection
// policies behind one interface, so the pool controller never has to know
// whether it is running FIFO, LRU, CLOCK, or LFU.
package replacement

// Policy is consulted by the pool controller only when admission requires
// evicting a resident, unpinned frame. Implementations never see page
// contents; they only ever see frame indices [0, capacity).
type Policy interface {
	// OnAdmit is called once, right after a frame index is populated with a
	// newly loaded page (miss path, whether from an empty slot or a victim).
	OnAdmit(frameIndex int)

	// OnHit is called when a pin request resolves to an already-resident
	// frame (hit path).
	OnHit(frameIndex int)

	// OnEvict is called after a frame has been selected as a victim and the
	// new page has been read, just before the frame is re-admitted (OnAdmit
	// follows), so bookkeeping for the old page can be cleared.
	OnEvict(frameIndex int)

	// SelectVictim returns the index of a frame that may be evicted, using
	// pinned to test whether a candidate frame is currently fixed. It
	// returns ok == false if no unpinned frame exists.
	SelectVictim(pinned func(frameIndex int) bool) (frameIndex int, ok bool)
}

// Strategy names a replacement policy, mirroring the C source's
// ReplacementStrategy enum / the spec's §4.3 "strategy" selector.
type Strategy int

const (
	FIFO Strategy = iota
	LRU
	Clock
	LFU
)

func (s Strategy) String() string {
	switch s {
	case FIFO:
		return "fifo"
	case LRU:
		return "lru"
	case Clock:
		return "clock"
	case LFU:
		return "lfu"
	default:
		return "unknown"
	}
}

// New constructs the Policy for strategy, sized for capacity frames.
func New(strategy Strategy, capacity int) Policy {
	switch strategy {
	case LRU:
		return newLRUPolicy(capacity)
	case Clock:
		return newClockPolicy(capacity)
	case LFU:
		return newLFUPolicy(capacity)
	default:
		return newFIFOPolicy(capacity)
	}
}
