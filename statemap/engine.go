// Package statemap ingests a concatenated-JSON entity-state trace and
// coalesces it, online, into a bounded number of rectangles suitable for
// visualization (spec §1). An Engine is single-use: create one with
// Create, call Ingest exactly once, read back whatever was emitted, and
// call Destroy.
package statemap

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"statemap/config"
	"statemap/logger"
)

// Engine holds the interned entity and tag tables, the weight-ordered
// multiset and the free lists that back one ingest run (spec §5
// "Resources": "One Engine owns one trace for its lifetime"). Ingest
// itself is single-threaded (spec §5), but an Engine's counters are also
// read from internal/statserver's stats handler while Ingest is running
// on its own goroutine; snap holds an atomically-published copy of the
// counters so that read path never races the writer.
type Engine struct {
	cfg   config.IngestConfig
	runID uuid.UUID

	nstates int

	entities *entityTable
	tags     *tagTable
	weights  *weightSet

	rectFree *rectangle
	tagFree  *tag

	ncoalesced int64
	nevents    int64
	nelisions  int64
	nrects     int

	ingested  bool
	destroyed atomic.Bool
	err       error

	snap atomic.Pointer[engineSnapshot]
}

// engineSnapshot is the set of fields safe to read concurrently with a
// running Ingest.
type engineSnapshot struct {
	rectCount int
	coalesced int64
	elisions  int64
	events    int64
	err       error
}

// Create allocates an Engine configured by cfg, ready for one call to
// Ingest.
func Create(cfg config.IngestConfig) *Engine {
	e := &Engine{
		cfg:      cfg,
		runID:    uuid.New(),
		entities: newEntityTable(),
		tags:     newTagTable(),
		weights:  newWeightSet(),
	}
	e.publishSnapshot()
	return e
}

// publishSnapshot copies the current counters into an atomically-stored
// snapshot. Called from the goroutine driving Ingest at every point the
// counters change, so a concurrent reader (e.g. a stats HTTP handler)
// never observes a torn or stale set of values.
func (e *Engine) publishSnapshot() {
	e.snap.Store(&engineSnapshot{
		rectCount: e.weights.size,
		coalesced: e.ncoalesced,
		elisions:  e.nelisions,
		events:    e.nevents,
		err:       e.err,
	})
}

func (e *Engine) loadSnapshot() *engineSnapshot {
	if s := e.snap.Load(); s != nil {
		return s
	}
	return &engineSnapshot{}
}

// fail records err as the Engine's terminal error, publishes it, and
// returns it, so every Ingest return path stays consistent with what
// concurrent readers of Err/RectCount/etc. see.
func (e *Engine) fail(err error) error {
	e.err = err
	e.publishSnapshot()
	return err
}

// RunID returns the identifier assigned to this Engine at Create, used to
// correlate its entry in the run log (internal/runlog) with whatever
// emitted the trace.
func (e *Engine) RunID() string {
	return e.runID.String()
}

// Err returns the error that aborted Ingest, if any. Safe to call while
// Ingest is running concurrently.
func (e *Engine) Err() error {
	return e.loadSnapshot().err
}

// Coalesced returns the number of coalesce operations performed. Safe to
// call while Ingest is running concurrently.
func (e *Engine) Coalesced() int64 { return e.loadSnapshot().coalesced }

// Events returns the number of event-only datums seen. Safe to call
// while Ingest is running concurrently.
func (e *Engine) Events() int64 { return e.loadSnapshot().events }

// Elisions returns the number of same-timestamp state overwrites seen.
// Safe to call while Ingest is running concurrently.
func (e *Engine) Elisions() int64 { return e.loadSnapshot().elisions }

// RectCount returns the number of rectangles currently held. It stays
// within cfg.MaxRect except when no held rectangle has a neighbor to be
// merged with, in which case the count is left over budget. Safe to call
// while Ingest is running concurrently.
func (e *Engine) RectCount() int {
	if e.destroyed.Load() {
		return e.nrects
	}
	return e.loadSnapshot().rectCount
}

// Destroy releases an Engine's internal tables. Accessors that depend on
// them (RunID, Coalesced, Events, Elisions, Err, RectCount) remain valid;
// Ingest does not.
func (e *Engine) Destroy() {
	if e.destroyed.Load() {
		return
	}
	e.nrects = e.weights.size
	e.entities = nil
	e.tags = nil
	e.weights = nil
	e.rectFree = nil
	e.tagFree = nil
	e.destroyed.Store(true)
}

// EmitFunc receives one Record at a time, in emission order (spec §4.8):
// every TagDefRecord in discovery order, then for each entity in
// discovery order its DescriptionRecord (if any) followed by its
// RectangleRecords in chain order.
type EmitFunc func(Record) error

// Record is the marker interface implemented by every emitted record
// kind.
type Record interface {
	isRecord()
}

// TagDefRecord describes one interned (state, name) tag definition.
type TagDefRecord struct {
	Index int
	State int
	Name  string
	JSON  string
}

func (TagDefRecord) isRecord() {}

// DescriptionRecord carries the free-text description an entity was
// given, if any.
type DescriptionRecord struct {
	Entity string
	Text   string
}

func (DescriptionRecord) isRecord() {}

// RectangleTag attributes part of a rectangle's duration to a tag
// definition, referenced by its TagDefRecord.Index.
type RectangleTag struct {
	TagIndex int
	Duration int64
}

// RectangleRecord is one emitted rectangle: an entity's dwell in States
// over [Start, Start+Duration), plus whatever tags were accumulated onto
// it (through coalescing or otherwise).
type RectangleRecord struct {
	Entity   string
	Start    int64
	Duration int64
	States   []int64
	Tags     []RectangleTag
}

func (RectangleRecord) isRecord() {}

// Ingest maps path, parses its metadata blob followed by a stream of
// datum blobs, and coalesces them into the bounded rectangle
// representation (spec §4.1-§4.6). If emit is non-nil and cfg.DryRun is
// not set, every resulting record is handed to it in emission order (spec
// §4.8) once ingestion and finalization complete; with cfg.DryRun set,
// nothing is emitted. It returns the number of coalesce operations
// performed. An Engine may be ingested at most once.
func (e *Engine) Ingest(path string, emit EmitFunc) (int64, error) {
	if e.destroyed.Load() {
		return 0, ErrDestroyed
	}
	if e.ingested {
		return 0, ErrAlreadyIngested
	}
	e.ingested = true

	logger.Debug("ingest %s: run %s", path, e.runID)

	mf, err := mapFile(path)
	if err != nil {
		return 0, e.fail(err)
	}
	defer mf.close()

	if len(mf.data) == 0 {
		return 0, e.fail(lineErrorf(1, "empty input"))
	}

	scanner := newBlobScanner(mf.data)

	mstart, mend, ok, err := scanner.findBlob(0)
	if err != nil {
		return 0, e.fail(err)
	}
	if !ok {
		return 0, e.fail(lineErrorf(1, "missing metadata"))
	}

	nstates, err := parseMetadata(mf.data[mstart:mend])
	if err != nil {
		return 0, e.fail(lineErrorf(scanner.line, "illegal metadata: %v", err))
	}
	e.nstates = nstates

	pos := mend
	for {
		start, end, ok, err := scanner.findBlob(pos)
		if err != nil {
			return 0, e.fail(err)
		}
		if !ok {
			break
		}
		if err := e.processDatum(mf.data[start:end], scanner.line); err != nil {
			return 0, e.fail(err)
		}
		e.publishSnapshot()
		pos = end
	}

	if _, err := e.finalize(); err != nil {
		return 0, e.fail(err)
	}
	e.publishSnapshot()

	logger.Debug("ingest %s: %d rectangles, %d coalesced, %d elisions, %d events",
		path, e.weights.size, e.ncoalesced, e.nelisions, e.nevents)

	if e.cfg.DryRun {
		return e.ncoalesced, nil
	}

	if emit != nil {
		if err := e.emitAll(emit); err != nil {
			return 0, e.fail(err)
		}
	}

	return e.ncoalesced, nil
}

// emitAll walks the tag table and the entity chains in discovery order,
// handing every record to fn (spec §4.8 "Emission").
func (e *Engine) emitAll(fn EmitFunc) error {
	for d := e.tags.head; d != nil; d = d.listNext {
		rec := TagDefRecord{Index: d.index, State: d.state, Name: d.name, JSON: d.json}
		if err := fn(rec); err != nil {
			return fmt.Errorf("emitting tag definition %q: %w", d.name, err)
		}
	}

	for en := e.entities.head; en != nil; en = en.listNext {
		if en.hasDesc {
			if err := fn(DescriptionRecord{Entity: en.name, Text: en.description}); err != nil {
				return fmt.Errorf("emitting description for entity %q: %w", en.name, err)
			}
		}

		for r := en.first; r != nil; r = r.next {
			rec := RectangleRecord{
				Entity:   en.name,
				Start:    r.start,
				Duration: r.duration,
				States:   append([]int64(nil), r.states...),
			}
			for tg := r.tags; tg != nil; tg = tg.next {
				rec.Tags = append(rec.Tags, RectangleTag{TagIndex: tg.def.index, Duration: tg.duration})
			}
			if err := fn(rec); err != nil {
				return fmt.Errorf("emitting rectangle for entity %q: %w", en.name, err)
			}
		}
	}

	return nil
}
