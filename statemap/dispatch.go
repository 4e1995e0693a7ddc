package statemap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// datumErr wraps a message in the "illegal datum on line %d" convention
// the original scanner's error macro applied to every per-datum failure.
func datumErr(line int, format string, args ...interface{}) *IngestError {
	msg := fmt.Sprintf(format, args...)
	return &IngestError{Line: line, Msg: fmt.Sprintf("illegal datum on line %d: %s", line, msg)}
}

var datumKeys = map[string]bool{
	"entity":      true,
	"time":        true,
	"state":       true,
	"event":       true,
	"description": true,
	"tag":         true,
}

// buildLeftoverJSON reconstructs a JSON object from every field in a
// datum that isn't one of the structural keys the ingester consumes,
// preserving source order (spec §4.4 "Tag definition": "the JSON blob
// for the tag, minus the structural fields the ingester consumed,
// captured verbatim the first time this (state, name) pair is seen").
// Returns "" when there are no leftover fields.
func buildLeftoverJSON(fields []objectField) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	wrote := false
	for _, f := range fields {
		if datumKeys[f.key] {
			continue
		}
		if wrote {
			buf.WriteByte(',')
		}
		wrote = true
		keyJSON, err := json.Marshal(f.key)
		if err != nil {
			continue
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(bytes.TrimSpace(f.raw))
	}
	buf.WriteByte('}')
	if !wrote {
		return ""
	}
	return buf.String()
}

// processDatum classifies and dispatches one data-section blob (spec
// §4.5 "Datum classification"). line is the source line of the blob's
// closing brace, used for error reporting.
func (e *Engine) processDatum(blob []byte, line int) error {
	fields, err := parseObjectFields(blob)
	if err != nil {
		return datumErr(line, "%v", err)
	}

	var entityRaw, timeRaw, stateRaw, descRaw, tagRaw []byte
	haveEntity, haveTime, haveState, haveEvent, haveDesc, haveTag := false, false, false, false, false, false

	for _, f := range fields {
		switch f.key {
		case "entity":
			entityRaw, haveEntity = f.raw, true
		case "time":
			timeRaw, haveTime = f.raw, true
		case "state":
			stateRaw, haveState = f.raw, true
		case "event":
			haveEvent = true
		case "description":
			descRaw, haveDesc = f.raw, true
		case "tag":
			tagRaw, haveTag = f.raw, true
		}
	}

	if !haveEntity {
		return datumErr(line, `missing "entity" field`)
	}

	var name string
	if err := unmarshalJSON(entityRaw, &name); err != nil {
		return datumErr(line, `"entity" is not a valid string: %v`, err)
	}
	if name == "" {
		return datumErr(line, `"entity" must not be empty`)
	}

	ent := e.entities.lookupOrCreate(name)

	if !haveTime {
		if !haveDesc {
			return datumErr(line, `datum for entity %q has neither "time" nor "description"`, name)
		}
		var desc string
		if err := unmarshalJSON(descRaw, &desc); err != nil {
			return datumErr(line, `"description" is not a valid string: %v`, err)
		}
		ent.description = desc
		ent.hasDesc = true
		return nil
	}

	if !haveState {
		if haveEvent {
			e.nevents++
			return nil
		}
		return datumErr(line, `datum for entity %q has "time" but no "state" or "event"`, name)
	}

	t, ok := parseNonNegativeInt(timeRaw)
	if !ok {
		return datumErr(line, `"time" is not a non-negative integer`)
	}

	s64, ok := parseNonNegativeInt(stateRaw)
	if !ok || s64 >= int64(e.nstates) {
		return datumErr(line, "state value %s is not a known state", stateRaw)
	}
	s := int(s64)

	tagPresent := haveTag && !e.cfg.NoTags
	var tagName, tagJSON string
	if tagPresent {
		if err := unmarshalJSON(tagRaw, &tagName); err != nil {
			return datumErr(line, `"tag" is not a valid string: %v`, err)
		}
		tagJSON = buildLeftoverJSON(fields)
	}

	return e.applyDatum(ent, line, t, s, tagName, tagPresent, tagJSON)
}

// setOpenTag resolves (or clears) an entity's currently-open tag
// definition alongside its open state (spec §4.7: the tag carried by a
// datum describes the state that datum is opening, and travels with
// that state until the rectangle for it is eventually produced).
func (e *Engine) setOpenTag(ent *entity, state int, name string, present bool, json string) {
	if !present {
		ent.openTagDef = nil
		return
	}
	ent.openTagDef = e.tags.lookupOrCreate(state, name, json)
}

// applyDatum runs the state-transition state machine for one
// (entity, time, state) triple (spec §4.5 "Transition semantics").
func (e *Engine) applyDatum(ent *entity, line int, t int64, s int, tagName string, tagPresent bool, tagJSON string) error {
	if ent.openStart < 0 {
		ent.openStart = t
		ent.openState = s
		e.setOpenTag(ent, s, tagName, tagPresent, tagJSON)
		return nil
	}

	if t < ent.openStart {
		return datumErr(line, "time %d is out of order with respect to prior time %d", t, ent.openStart)
	}

	if t == ent.openStart {
		e.nelisions++
		ent.openState = s
		e.setOpenTag(ent, s, tagName, tagPresent, tagJSON)
		return nil
	}

	if e.cfg.End != 0 && t > e.cfg.End {
		return nil
	}

	if ent.openStart < e.cfg.Begin {
		ent.openStart = e.cfg.Begin
	}
	if t > e.cfg.Begin {
		if err := e.newRect(ent, t); err != nil {
			return err
		}
	}

	ent.openStart = t
	ent.openState = s
	e.setOpenTag(ent, s, tagName, tagPresent, tagJSON)
	return nil
}

// finalize closes every entity's open state at the end of the trace
// (spec §4.5 "Finalization"). end is config.End if set, otherwise the
// maximum open_start observed across all entities.
func (e *Engine) finalize() (int64, error) {
	end := e.cfg.End
	if end == 0 {
		for en := e.entities.head; en != nil; en = en.listNext {
			if en.openStart > end {
				end = en.openStart
			}
		}
	}

	for en := e.entities.head; en != nil; en = en.listNext {
		if en.openStart < 0 || en.openStart >= end {
			continue
		}
		if en.openStart < e.cfg.Begin {
			en.openStart = e.cfg.Begin
		}
		if end > e.cfg.Begin {
			if err := e.newRect(en, end); err != nil {
				return 0, err
			}
		}
	}

	return end, nil
}
