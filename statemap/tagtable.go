package statemap

// tagHashBuckets mirrors entityHashBuckets (spec §4.4).
const tagHashBuckets = 8192

// tagdef is a (state, name) pair interned once and assigned a dense,
// discovery-order index (spec §3 "Tag definition").
type tagdef struct {
	name  string
	state int
	index int
	json  string

	hashNext *tagdef // next def in this bucket's chain
	listNext *tagdef // next def in discovery order
}

// tag is a per-rectangle accumulator: how much of a rectangle's time in
// def.state is attributed to def (spec §3 "Tag"). next chains the
// rectangle's tag list when attached, and is reused as the free-list
// link once detached (mirroring how rectangles reuse their own "next"
// field for the rectangle free list, spec §3 "Ownership").
type tag struct {
	def      *tagdef
	duration int64
	next     *tag
}

// tagTable interns tag definitions the same way entityTable interns
// entities: a fixed-bucket hash keyed on (state, name), insertion order
// preserved via a head/tail list for emission (spec §4.8).
type tagTable struct {
	buckets [tagHashBuckets]*tagdef
	head    *tagdef
	tail    *tagdef
	count   int
}

func newTagTable() *tagTable {
	return &tagTable{}
}

func tagHash(state int, name string) uint32 {
	// Fold the state into the hash so identically-named tags under
	// different states land in (likely) different buckets.
	h := jenkinsOneAtATime(name)
	h += uint32(state)
	h += h << 10
	h ^= h >> 6
	return h
}

// lookupOrCreate finds the tag definition for (state, name), creating one
// with the given JSON description (or "{}" if empty) if it doesn't yet
// exist. json is only recorded at creation time -- later sightings of an
// already-known definition don't update its stored JSON.
func (t *tagTable) lookupOrCreate(state int, name, json string) *tagdef {
	h := tagHash(state, name)
	bucket := h % tagHashBuckets

	for d := t.buckets[bucket]; d != nil; d = d.hashNext {
		if d.state == state && d.name == name {
			return d
		}
	}

	if json == "" {
		json = "{}"
	}

	d := &tagdef{name: name, state: state, json: json, index: t.count}

	d.hashNext = t.buckets[bucket]
	t.buckets[bucket] = d

	if t.head == nil {
		t.head = d
		t.tail = d
	} else {
		t.tail.listNext = d
		t.tail = d
	}
	t.count++

	return d
}
