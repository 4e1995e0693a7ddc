package statemap

import "encoding/json"

// unmarshalJSON decodes a single JSON value span using the standard
// library decoder. This is the "black-box lexer" the spec treats as an
// external collaborator (§1 Out of scope) -- parseObjectFields (scanner.go) does
// its own structural splitting of object members, but decoding an
// individual string/number value is delegated here rather than
// reimplemented.
func unmarshalJSON(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}

// parseNonNegativeInt parses a JSON primitive or string token as a
// non-negative base-10 integer, matching the original implementation's
// statemap_tokint: digits only, no sign, and a quoted string of digits is
// accepted equally with a bare number (spec §6: "integer string or
// number"). Returns ok=false for anything else, including a legal
// negative number.
func parseNonNegativeInt(raw []byte) (int64, bool) {
	s := raw
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if len(s) == 0 {
		return 0, false
	}

	var v int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
	}
	return v, true
}
