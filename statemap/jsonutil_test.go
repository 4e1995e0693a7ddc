package statemap

import "testing"

func TestParseNonNegativeInt(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantOK  bool
	}{
		{`0`, 0, true},
		{`42`, 42, true},
		{`"42"`, 42, true},
		{`-1`, 0, false},
		{`"-1"`, 0, false},
		{`1.5`, 0, false},
		{`""`, 0, false},
		{`"abc"`, 0, false},
		{`true`, 0, false},
	}

	for _, c := range cases {
		got, ok := parseNonNegativeInt([]byte(c.in))
		if ok != c.wantOK {
			t.Errorf("parseNonNegativeInt(%q): got ok=%v, want %v", c.in, ok, c.wantOK)
			continue
		}
		if ok && got != c.want {
			t.Errorf("parseNonNegativeInt(%q): got %d, want %d", c.in, got, c.want)
		}
	}
}

func TestUnmarshalJSONString(t *testing.T) {
	var s string
	if err := unmarshalJSON([]byte(`"hello"`), &s); err != nil {
		t.Fatalf("unmarshalJSON: %v", err)
	}
	if s != "hello" {
		t.Fatalf("got %q, want hello", s)
	}

	if err := unmarshalJSON([]byte(`42`), &s); err == nil {
		t.Fatalf("expected an error decoding a number into a string")
	}
}
