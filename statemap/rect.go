package statemap

// rectangle is a contiguous time interval for one entity, carrying a
// dense per-state duration vector (spec §3 "Rectangle"). Rectangles for
// one entity form a doubly-linked chain ordered by start; the same
// rectangle is also a node of the weight-ordered multiset via wsForward
// (spec §4.6, §9 "Doubly-linked rectangles + ordered multiset").
//
// Go has no flexible array member, so unlike the original's single
// malloc of sizeof(rect_header) + nstates*sizeof(duration), states is a
// separate slice; allocRect sizes it once per statemap (after metadata)
// and rectangles are recycled via Engine.rectFree so that slice is reused
// rather than reallocated on every coalesce (spec §3 "Ownership", §9
// "Free lists").
type rectangle struct {
	start    int64
	duration int64
	weight   int64

	prev *rectangle
	next *rectangle

	entity *entity
	tags   *tag

	states []int64

	wsForward []*rectangle // weight-set skip list forward pointers
}

// computeWeight returns duration + (prev duration, if any) + (next
// duration, if any) -- the tie-breaking priority used by the coalescing
// engine (spec §3 "Rectangle" invariant, §4.6).
func (r *rectangle) computeWeight() int64 {
	w := r.duration
	if r.prev != nil {
		w += r.prev.duration
	}
	if r.next != nil {
		w += r.next.duration
	}
	return w
}

// allocRect pops a rectangle off the free list if one is available,
// otherwise allocates a fresh one sized for nstates (spec §4.6 "New
// rectangle procedure" step 1).
func (e *Engine) allocRect() *rectangle {
	var r *rectangle
	if e.rectFree != nil {
		r = e.rectFree
		e.rectFree = r.next
	} else {
		r = &rectangle{}
	}

	r.start = 0
	r.duration = 0
	r.weight = 0
	r.prev = nil
	r.next = nil
	r.entity = nil
	r.tags = nil
	r.wsForward = nil

	if cap(r.states) >= e.nstates {
		r.states = r.states[:e.nstates]
		for i := range r.states {
			r.states[i] = 0
		}
	} else {
		r.states = make([]int64, e.nstates)
	}

	return r
}

// freeRect returns a rectangle to the free list, reusing its own next
// field as the free-list link (spec §3 "Ownership": "Freed rectangles
// and tags are recycled through singly-linked free lists").
func (e *Engine) freeRect(r *rectangle) {
	e.freeTagList(r.tags)
	r.tags = nil
	r.next = e.rectFree
	e.rectFree = r
}

// allocTag pops a tag off the free list if available, otherwise
// allocates a fresh one.
func (e *Engine) allocTag() *tag {
	if e.tagFree != nil {
		t := e.tagFree
		e.tagFree = t.next
		t.next = nil
		return t
	}
	return &tag{}
}

// freeTagList returns an entire tag list to the free list at once.
func (e *Engine) freeTagList(head *tag) {
	if head == nil {
		return
	}
	tailTag := head
	for tailTag.next != nil {
		tailTag = tailTag.next
	}
	tailTag.next = e.tagFree
	e.tagFree = head
}
