package statemap

import "fmt"

// metadataMaxBytes is the maximum size of the metadata blob.
const metadataMaxBytes = 16 * 1024

// parseMetadata parses the leading metadata blob (spec §4.2), returning
// the state cardinality. It requires a top-level "states" object whose
// members are "<name>": { "value": <int>, ... }, with values unique and
// in [0, nstates).
func parseMetadata(blob []byte) (nstates int, err error) {
	if len(blob) > metadataMaxBytes {
		return 0, fmt.Errorf("size of metadata (%d bytes) exceeds maximum (%d bytes)",
			len(blob), metadataMaxBytes)
	}

	fields, err := parseObjectFields(blob)
	if err != nil {
		return 0, fmt.Errorf("invalid metadata: %w", err)
	}

	var statesRaw []byte
	found := false
	for _, f := range fields {
		if f.key == "states" {
			statesRaw = f.raw
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf(`missing "states" in metadata`)
	}
	if len(statesRaw) == 0 || statesRaw[0] != '{' {
		return 0, fmt.Errorf(`invalid metadata: "states" must be an object`)
	}

	states, err := parseObjectFields(statesRaw)
	if err != nil {
		return 0, fmt.Errorf(`invalid metadata: "states": %w`, err)
	}

	nstates = len(states)
	if nstates == 0 {
		return 0, fmt.Errorf(`invalid metadata: "states" has no members`)
	}

	nameForValue := make([]string, nstates)
	assigned := make([]bool, nstates)

	for _, st := range states {
		if len(st.raw) == 0 || st.raw[0] != '{' {
			return 0, fmt.Errorf(`"states" members must be objects`)
		}

		members, err := parseObjectFields(st.raw)
		if err != nil {
			return 0, fmt.Errorf("state %q: %w", st.key, err)
		}

		var valueRaw []byte
		haveValue := false
		for _, m := range members {
			if m.key == "value" {
				valueRaw = m.raw
				haveValue = true
				break
			}
		}
		if !haveValue {
			return 0, fmt.Errorf("state %q is missing a value field", st.key)
		}
		if len(valueRaw) > 0 && valueRaw[0] == '"' {
			return 0, fmt.Errorf(`"value" member for state %q is not an integer`, st.key)
		}

		val, ok := parseNonNegativeInt(valueRaw)
		if !ok {
			return 0, fmt.Errorf(`"value" member for state %q is not an integer`, st.key)
		}
		if val >= int64(nstates) {
			return 0, fmt.Errorf(`"value" member for state %q exceeds maximum (%d)`,
				st.key, nstates-1)
		}

		v := int(val)
		if assigned[v] {
			return 0, fmt.Errorf(`"value" for state %q (%d) conflicts with that of state %q`,
				st.key, v, nameForValue[v])
		}
		assigned[v] = true
		nameForValue[v] = st.key
	}

	return nstates, nil
}
