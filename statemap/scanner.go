package statemap

import (
	"fmt"
)

// blobScanner locates successive top-level JSON blobs in a contiguous
// byte range, tracking a line counter across the whole input (spec §4.1).
// It never copies the underlying bytes; callers that keep references to
// a blob's span must not outlive the mapping that owns data.
type blobScanner struct {
	data []byte
	line int
}

func newBlobScanner(data []byte) *blobScanner {
	return &blobScanner{data: data, line: 1}
}

// findBlob scans forward from offset pos in data, skipping whitespace,
// and returns the byte range of the next balanced top-level JSON object.
// It returns ok=false (with start and end both 0) once nothing but
// whitespace remains.
func (s *blobScanner) findBlob(pos int) (start, end int, ok bool, err error) {
	lim := len(s.data)
	i := pos

	for i < lim {
		c := s.data[i]
		if c == '\n' {
			s.line++
			i++
			continue
		}
		if isJSONSpace(c) {
			i++
			continue
		}
		if c == '{' {
			break
		}
		return 0, 0, false, lineErrorf(s.line,
			"line %d: illegal JSON delimiter (%q)", s.line, c)
	}

	if i == lim {
		return 0, 0, false, nil
	}

	start = i
	startLine := s.line
	depth := 1
	inString := false
	backslashed := false
	i++

	for i < lim {
		c := s.data[i]
		i++

		if c == '\n' {
			s.line++
		}

		if backslashed {
			backslashed = false
			continue
		}

		switch c {
		case '"':
			inString = !inString
		case '\\':
			if inString {
				backslashed = true
			}
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return start, i, true, nil
				}
			}
		}
	}

	return 0, 0, false, lineErrorf(startLine,
		"JSON payload starting at line %d is not terminated", startLine)
}

func isJSONSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	default:
		return false
	}
}

// objectField is one top-level member of a parsed JSON object: the
// decoded key and the raw (still-encoded) byte span of its value.
type objectField struct {
	key string
	raw []byte
}

// parseObjectFields splits a single balanced JSON object (raw must begin
// with '{' and end with the matching '}') into its top-level members,
// preserving source order and rejecting duplicate keys. Nested
// objects/arrays/strings are skipped as opaque spans -- this performs
// exactly one level of structural parsing; recognized fields are decoded
// from their raw span separately (scanner.go treats the deeper JSON
// grammar as something layered on top, not reimplemented here).
func parseObjectFields(raw []byte) ([]objectField, error) {
	n := len(raw)
	if n == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}

	i := 1
	var fields []objectField
	seen := make(map[string]bool)

	for {
		i = skipSpace(raw, i)
		if i >= n {
			return nil, fmt.Errorf("unterminated JSON object")
		}
		if raw[i] == '}' {
			i++
			break
		}
		if len(fields) > 0 {
			if raw[i] != ',' {
				return nil, fmt.Errorf("expected ',' in JSON object")
			}
			i++
			i = skipSpace(raw, i)
		}
		if i >= n || raw[i] != '"' {
			return nil, fmt.Errorf("expected string key in JSON object")
		}

		keyStart := i
		keyEnd, err := scanString(raw, i)
		if err != nil {
			return nil, err
		}
		var key string
		if err := unmarshalJSON(raw[keyStart:keyEnd], &key); err != nil {
			return nil, fmt.Errorf("invalid object key: %w", err)
		}
		i = keyEnd

		i = skipSpace(raw, i)
		if i >= n || raw[i] != ':' {
			return nil, fmt.Errorf("expected ':' after key %q", key)
		}
		i++
		i = skipSpace(raw, i)

		valStart := i
		valEnd, err := scanValue(raw, i)
		if err != nil {
			return nil, err
		}
		i = valEnd

		if seen[key] {
			return nil, fmt.Errorf("duplicate %q", key)
		}
		seen[key] = true

		fields = append(fields, objectField{key: key, raw: raw[valStart:valEnd]})
	}

	return fields, nil
}

func skipSpace(data []byte, i int) int {
	for i < len(data) && isJSONSpace(data[i]) {
		i++
	}
	return i
}

// scanString returns the index just past the closing quote of the JSON
// string starting at data[i] (data[i] must be '"').
func scanString(data []byte, i int) (int, error) {
	n := len(data)
	if i >= n || data[i] != '"' {
		return 0, fmt.Errorf("expected string")
	}
	i++
	for i < n {
		switch data[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return i + 1, nil
		}
		i++
	}
	return 0, fmt.Errorf("unterminated string")
}

// scanValue returns the index just past the JSON value starting at
// data[i], whatever its type.
func scanValue(data []byte, i int) (int, error) {
	n := len(data)
	if i >= n {
		return 0, fmt.Errorf("unexpected end of object")
	}

	switch data[i] {
	case '"':
		return scanString(data, i)
	case '{', '[':
		open, close := data[i], closingFor(data[i])
		depth := 1
		inString := false
		i++
		for i < n {
			c := data[i]
			switch {
			case inString:
				if c == '\\' {
					i += 2
					continue
				}
				if c == '"' {
					inString = false
				}
			case c == '"':
				inString = true
			case c == open:
				depth++
			case c == close:
				depth--
				if depth == 0 {
					return i + 1, nil
				}
			}
			i++
		}
		return 0, fmt.Errorf("unterminated %q", open)
	default:
		// number, true, false or null: read until a structural delimiter.
		start := i
		for i < n {
			c := data[i]
			if c == ',' || c == '}' || c == ']' || isJSONSpace(c) {
				break
			}
			i++
		}
		if i == start {
			return 0, fmt.Errorf("malformed JSON value")
		}
		return i, nil
	}
}

func closingFor(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}
