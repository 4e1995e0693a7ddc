package statemap

// newRect implements the "New-rectangle procedure" (spec §4.6): allocate
// (or recycle) a rectangle covering [ent.openStart, t), append it to the
// entity's chain, insert it into the weight-ordered multiset, and run one
// coalesce step if that pushed the multiset over budget.
func (e *Engine) newRect(ent *entity, t int64) error {
	r := e.allocRect()
	r.start = ent.openStart
	r.duration = t - ent.openStart
	r.states[ent.openState] = r.duration
	r.entity = ent

	if ent.openTagDef != nil {
		tg := e.allocTag()
		tg.def = ent.openTagDef
		tg.duration = r.duration
		tg.next = nil
		r.tags = tg
	}

	r.prev = ent.last
	if ent.first == nil {
		ent.first = r
	} else {
		ent.last.next = r
		e.updateWeight(ent.last)
	}
	ent.last = r

	r.weight = r.computeWeight()
	e.weights.insert(r)

	if e.weights.size <= int(e.cfg.MaxRect) {
		return nil
	}

	return e.coalesce()
}

// findVictim walks the multiset from the minimum, skipping rectangles
// with no neighbor in their entity's chain -- a single-rectangle entity
// has nothing to merge with (spec §4.6 "Coalesce step").
func (e *Engine) findVictim() *rectangle {
	for cand := e.weights.first(); cand != nil; cand = cand.successor() {
		if cand.prev != nil || cand.next != nil {
			return cand
		}
	}
	return nil
}

// coalesce removes exactly one rectangle, merging the globally lightest
// mergeable rectangle into its lighter (or only) neighbor (spec §4.6).
// If no victim exists (every entity is down to a single rectangle), the
// multiset is left over budget.
func (e *Engine) coalesce() error {
	victim := e.findVictim()
	if victim == nil {
		return nil
	}

	var left, survivor *rectangle
	switch {
	case victim.prev == nil:
		left = victim
		survivor = victim.next
	case victim.next == nil:
		left = victim.prev
		survivor = victim.prev
	case victim.prev.duration < victim.next.duration:
		left = victim.prev
		survivor = victim.prev
	default:
		left = victim
		survivor = victim.next
	}

	// Remove survivor before mutating the key fields (duration, and
	// possibly start) that its position in the multiset depends on --
	// otherwise the later removal would search using post-merge values
	// that don't match where it was actually inserted.
	e.weights.remove(survivor)

	survivor.duration += victim.duration
	for i := 0; i < e.nstates; i++ {
		survivor.states[i] += victim.states[i]
	}
	survivor.tags = mergeTagLists(survivor.tags, victim.tags)
	victim.tags = nil

	ent := victim.entity
	if victim == left {
		survivor.start = victim.start
		survivor.prev = victim.prev
		if survivor.prev == nil {
			ent.first = survivor
		} else {
			survivor.prev.next = survivor
		}
	} else {
		survivor.next = victim.next
		if survivor.next == nil {
			ent.last = survivor
		} else {
			survivor.next.prev = survivor
		}
	}

	e.weights.remove(victim)
	e.freeRect(victim)

	survivor.weight = survivor.computeWeight()
	e.weights.insert(survivor)

	e.updateWeight(survivor.prev)
	e.updateWeight(survivor.next)

	e.ncoalesced++
	return nil
}

// mergeTagLists concatenates two tag lists without deduplication (spec
// §4.7: "Lists may be concatenated without deduplication; consumers
// treat tags as additive"). Ownership of src's nodes transfers to the
// result -- callers must not free src's original head afterward.
func mergeTagLists(dst, src *tag) *tag {
	if src == nil {
		return dst
	}
	if dst == nil {
		return src
	}
	tail := src
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = dst
	return src
}
