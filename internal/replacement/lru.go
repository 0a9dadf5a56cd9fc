package replacement

import "container/list"

// lruPolicy tracks recency with a doubly linked list, the way the reference
// repo's LRUManager wraps container/list: the front of the list is the most
// recently touched frame, the back is the eviction candidate.
type lruPolicy struct {
	order *list.List
	elems []*list.Element // elems[i] is frame i's element in order, or nil if not present
}

func newLRUPolicy(capacity int) *lruPolicy {
	return &lruPolicy{
		order: list.New(),
		elems: make([]*list.Element, capacity),
	}
}

func (p *lruPolicy) touch(frameIndex int) {
	if e := p.elems[frameIndex]; e != nil {
		p.order.MoveToFront(e)
		return
	}
	p.elems[frameIndex] = p.order.PushFront(frameIndex)
}

func (p *lruPolicy) OnAdmit(frameIndex int) { p.touch(frameIndex) }
func (p *lruPolicy) OnHit(frameIndex int)   { p.touch(frameIndex) }

func (p *lruPolicy) OnEvict(frameIndex int) {
	if e := p.elems[frameIndex]; e != nil {
		p.order.Remove(e)
		p.elems[frameIndex] = nil
	}
}

func (p *lruPolicy) SelectVictim(pinned func(frameIndex int) bool) (int, bool) {
	for e := p.order.Back(); e != nil; e = e.Prev() {
		idx := e.Value.(int)
		if !pinned(idx) {
			return idx, true
		}
	}
	return 0, false
}
