package statemap

import "math/rand"

// weightSet is the global ordered multiset of rectangles, keyed by the
// tuple (weight, duration, start, entity.name) (spec §4.6 "Weight
// ordering"). It is implemented as an intrusive skip list over
// *rectangle nodes -- each rectangle carries its own forward pointers
// (rectangle.wsForward) the way the teacher's SkipListNode carries
// "forward", rather than wrapping rectangles in a separate node type.
// This gives O(log n) expected insert/remove and O(1) access to the
// minimum and to any node's successor, which the coalesce step's
// victim search relies on (spec §4.6 "Coalesce step").
type weightSet struct {
	header *rectangle
	level  int
	size   int
	rng    *rand.Rand
}

const (
	wsMaxLevel = 16
	wsP        = 0.5
)

func newWeightSet() *weightSet {
	return &weightSet{
		header: &rectangle{wsForward: make([]*rectangle, wsMaxLevel)},
		level:  0,
		rng:    rand.New(rand.NewSource(0)),
	}
}

// compareRect implements the total order of spec §4.6: weight, then
// duration, then start, then entity name as the final tiebreaker.
func compareRect(a, b *rectangle) int {
	if a.weight != b.weight {
		if a.weight < b.weight {
			return -1
		}
		return 1
	}
	if a.duration != b.duration {
		if a.duration < b.duration {
			return -1
		}
		return 1
	}
	if a.start != b.start {
		if a.start < b.start {
			return -1
		}
		return 1
	}
	switch {
	case a.entity.name < b.entity.name:
		return -1
	case a.entity.name > b.entity.name:
		return 1
	default:
		return 0
	}
}

func (ws *weightSet) randomLevel() int {
	level := 0
	for level < wsMaxLevel-1 && ws.rng.Float64() < wsP {
		level++
	}
	return level
}

// search walks the skip list to the predecessor of the position r would
// occupy, filling update[i] with the rightmost node at level i that
// sorts strictly before r.
func (ws *weightSet) search(r *rectangle, update []*rectangle) {
	cur := ws.header
	for i := ws.level; i >= 0; i-- {
		for cur.wsForward[i] != nil && compareRect(cur.wsForward[i], r) < 0 {
			cur = cur.wsForward[i]
		}
		update[i] = cur
	}
}

// insert adds r to the multiset. r.weight must already be set.
func (ws *weightSet) insert(r *rectangle) {
	update := make([]*rectangle, wsMaxLevel)
	ws.search(r, update)

	newLevel := ws.randomLevel()
	if newLevel > ws.level {
		for i := ws.level + 1; i <= newLevel; i++ {
			update[i] = ws.header
		}
		ws.level = newLevel
	}

	r.wsForward = make([]*rectangle, newLevel+1)
	for i := 0; i <= newLevel; i++ {
		r.wsForward[i] = update[i].wsForward[i]
		update[i].wsForward[i] = r
	}
	ws.size++
}

// remove detaches r from the multiset. r.weight (and duration/start) must
// still hold the values used when r was inserted -- callers must remove
// before mutating the key fields of a live member (see updateWeight).
func (ws *weightSet) remove(r *rectangle) {
	update := make([]*rectangle, wsMaxLevel)
	ws.search(r, update)

	cur := update[0].wsForward[0]
	if cur != r {
		// Should not happen for a well-formed weight set; nothing to do.
		return
	}

	for i := 0; i <= ws.level; i++ {
		if update[i].wsForward[i] != r {
			continue
		}
		update[i].wsForward[i] = r.wsForward[i]
	}

	for ws.level > 0 && ws.header.wsForward[ws.level] == nil {
		ws.level--
	}
	ws.size--
}

// first returns the least rectangle in the multiset, or nil if empty.
func (ws *weightSet) first() *rectangle {
	return ws.header.wsForward[0]
}

// successor returns the rectangle immediately after r in multiset order,
// or nil if r is the greatest member. O(1): the level-0 chain is the
// exact sorted order.
func (r *rectangle) successor() *rectangle {
	return r.wsForward[0]
}

// updateWeight recomputes r's weight and re-keys it in the multiset if
// the weight changed (spec §4.6 "Weight-update semantics"). Since a
// skip list search from the header is already O(log n) expected, re-key
// is implemented as remove-then-reinsert with the new
// key rather than a positional walk from r's old neighbors; this keeps
// the weight-correctness invariant trivially easy to verify while still
// meeting the O(log n) amortized bound the spec requires.
func (e *Engine) updateWeight(r *rectangle) {
	if r == nil {
		return
	}
	newWeight := r.computeWeight()
	if newWeight == r.weight {
		return
	}
	e.weights.remove(r)
	r.weight = newWeight
	e.weights.insert(r)
}
