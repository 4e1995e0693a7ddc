package statemap

import "testing"

func TestParseMetadataBasic(t *testing.T) {
	blob := []byte(`{"states":{"idle":{"value":0},"busy":{"value":1}}}`)

	n, err := parseMetadata(blob)
	if err != nil {
		t.Fatalf("parseMetadata: %v", err)
	}
	if n != 2 {
		t.Fatalf("got nstates=%d, want 2", n)
	}
}

func TestParseMetadataMissingStates(t *testing.T) {
	if _, err := parseMetadata([]byte(`{}`)); err == nil {
		t.Fatalf("expected an error for a metadata blob with no \"states\"")
	}
}

func TestParseMetadataDuplicateValue(t *testing.T) {
	blob := []byte(`{"states":{"idle":{"value":0},"busy":{"value":0}}}`)
	if _, err := parseMetadata(blob); err == nil {
		t.Fatalf("expected an error for two states sharing a value")
	}
}

func TestParseMetadataValueOutOfRange(t *testing.T) {
	blob := []byte(`{"states":{"idle":{"value":5}}}`)
	if _, err := parseMetadata(blob); err == nil {
		t.Fatalf("expected an error for a value outside [0, nstates)")
	}
}

func TestParseMetadataValueMustBeBareInteger(t *testing.T) {
	blob := []byte(`{"states":{"idle":{"value":"0"}}}`)
	if _, err := parseMetadata(blob); err == nil {
		t.Fatalf("expected an error for a quoted \"value\"")
	}
}

func TestParseMetadataStatesNotObject(t *testing.T) {
	blob := []byte(`{"states":[1,2,3]}`)
	if _, err := parseMetadata(blob); err == nil {
		t.Fatalf("expected an error when \"states\" is not an object")
	}
}

func TestParseMetadataTooLarge(t *testing.T) {
	// Pad a valid blob with whitespace past the 16 KiB limit; padding
	// alone must not change the cardinality, only trip the size check.
	pad := make([]byte, metadataMaxBytes+1)
	for i := range pad {
		pad[i] = ' '
	}
	blob := append([]byte(`{"states":{"idle":{"value":0}},"pad":"`), pad...)
	blob = append(blob, []byte(`"}`)...)

	if len(blob) <= metadataMaxBytes {
		t.Fatalf("test fixture is %d bytes, want > %d", len(blob), metadataMaxBytes)
	}

	if _, err := parseMetadata(blob); err == nil {
		t.Fatalf("expected an error for metadata exceeding %d bytes", metadataMaxBytes)
	}
}

func TestParseMetadataAtLimitIsAccepted(t *testing.T) {
	prefix := []byte(`{"states":{"idle":{"value":0}},"pad":"`)
	suffix := []byte(`"}`)
	pad := make([]byte, metadataMaxBytes-len(prefix)-len(suffix))
	for i := range pad {
		pad[i] = ' '
	}
	blob := append(append(prefix, pad...), suffix...)
	if len(blob) != metadataMaxBytes {
		t.Fatalf("test fixture is %d bytes, want exactly %d", len(blob), metadataMaxBytes)
	}
	if _, err := parseMetadata(blob); err != nil {
		t.Fatalf("parseMetadata: %v", err)
	}
}
