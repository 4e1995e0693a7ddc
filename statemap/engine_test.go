package statemap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"statemap/config"
)

func writeTrace(t *testing.T, blobs ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.json")
	if err := os.WriteFile(path, []byte(strings.Join(blobs, "\n")), 0o644); err != nil {
		t.Fatalf("writing trace: %v", err)
	}
	return path
}

const twoStateMetadata = `{"states":{"on":{"value":0},"off":{"value":1}}}`

func collect(t *testing.T, path string, cfg config.IngestConfig) ([]TagDefRecord, []DescriptionRecord, []RectangleRecord, *Engine) {
	t.Helper()
	e := Create(cfg)

	var tags []TagDefRecord
	var descs []DescriptionRecord
	var rects []RectangleRecord

	_, err := e.Ingest(path, func(rec Record) error {
		switch r := rec.(type) {
		case TagDefRecord:
			tags = append(tags, r)
		case DescriptionRecord:
			descs = append(descs, r)
		case RectangleRecord:
			rects = append(rects, r)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	return tags, descs, rects, e
}

func TestScenarioTwoStateToggle(t *testing.T) {
	path := writeTrace(t, twoStateMetadata,
		`{"entity":"A","time":0,"state":0}`,
		`{"entity":"A","time":100,"state":1}`,
		`{"entity":"A","time":300,"state":0}`,
		`{"entity":"A","time":400,"state":1}`,
	)

	cfg := config.Default()
	cfg.MaxRect = 10

	_, _, rects, e := collect(t, path, cfg)
	defer e.Destroy()

	want := []RectangleRecord{
		{Entity: "A", Start: 0, Duration: 100, States: []int64{100, 0}},
		{Entity: "A", Start: 100, Duration: 200, States: []int64{0, 200}},
		{Entity: "A", Start: 300, Duration: 100, States: []int64{100, 0}},
	}
	assertRects(t, rects, want)

	if e.Coalesced() != 0 {
		t.Fatalf("got ncoalesced=%d, want 0", e.Coalesced())
	}
}

func TestScenarioBudgetCoalesce(t *testing.T) {
	// Same shape as the spec's budget-coalesce scenario, but the
	// expected merge follows the weight formula in §4.6 literally
	// (weight = duration + prev.duration + next.duration): the first
	// rectangle [0,10) has no left neighbor, so its weight (20) is
	// strictly less than [10,20)'s (100) once [20,100) is appended,
	// making [0,10) -- not [10,20) -- the true minimum-weight victim.
	// See DESIGN.md for the discrepancy with the spec's own narrated
	// numbers, which aren't reachable from the stated formula.
	path := writeTrace(t, twoStateMetadata,
		`{"entity":"A","time":0,"state":0}`,
		`{"entity":"A","time":10,"state":1}`,
		`{"entity":"A","time":20,"state":0}`,
		`{"entity":"A","time":100,"state":1}`,
	)

	cfg := config.Default()
	cfg.MaxRect = 2

	_, _, rects, e := collect(t, path, cfg)
	defer e.Destroy()

	want := []RectangleRecord{
		{Entity: "A", Start: 0, Duration: 20, States: []int64{10, 10}},
		{Entity: "A", Start: 20, Duration: 80, States: []int64{80, 0}},
	}
	assertRects(t, rects, want)

	if e.Coalesced() != 1 {
		t.Fatalf("got ncoalesced=%d, want 1", e.Coalesced())
	}
}

func TestScenarioOutOfOrder(t *testing.T) {
	path := writeTrace(t, twoStateMetadata,
		`{"entity":"A","time":100,"state":0}`,
		`{"entity":"A","time":50,"state":1}`,
	)

	e := Create(config.Default())
	defer e.Destroy()

	_, err := e.Ingest(path, func(Record) error { return nil })
	if err == nil {
		t.Fatalf("expected an out-of-order error")
	}
	if !strings.Contains(err.Error(), "out of order") {
		t.Fatalf("expected an \"out of order\" error, got %v", err)
	}
}

func TestScenarioDescriptionOnly(t *testing.T) {
	path := writeTrace(t, twoStateMetadata,
		`{"entity":"A","description":"db"}`,
		`{"entity":"A","time":0,"state":0}`,
		`{"entity":"A","time":10,"state":1}`,
	)

	_, descs, rects, e := collect(t, path, config.Default())
	defer e.Destroy()

	if len(descs) != 1 || descs[0].Entity != "A" || descs[0].Text != "db" {
		t.Fatalf("got descriptions %+v, want one {A db}", descs)
	}

	want := []RectangleRecord{
		{Entity: "A", Start: 0, Duration: 10, States: []int64{10, 0}},
	}
	assertRects(t, rects, want)
}

func TestScenarioTagAccounting(t *testing.T) {
	path := writeTrace(t, `{"states":{"cpu":{"value":0}}}`,
		`{"entity":"A","time":0,"state":0,"tag":"user"}`,
		`{"entity":"A","time":100,"state":0,"tag":"sys"}`,
		`{"entity":"A","time":200,"state":0}`,
	)

	cfg := config.Default()
	tags, _, rects, e := collect(t, path, cfg)
	defer e.Destroy()

	if len(tags) != 2 {
		t.Fatalf("got %d tag defs, want 2: %+v", len(tags), tags)
	}
	if tags[0].Name != "user" || tags[1].Name != "sys" {
		t.Fatalf("got tag defs %+v, want [user sys] in discovery order", tags)
	}

	if len(rects) != 2 {
		t.Fatalf("got %d rectangles, want 2", len(rects))
	}
	if rects[0].Start != 0 || rects[0].Duration != 100 {
		t.Fatalf("rect 0: got start=%d duration=%d", rects[0].Start, rects[0].Duration)
	}
	if len(rects[0].Tags) != 1 || rects[0].Tags[0].TagIndex != tags[0].Index || rects[0].Tags[0].Duration != 100 {
		t.Fatalf("rect 0 tags: got %+v", rects[0].Tags)
	}
	if rects[1].Start != 100 || rects[1].Duration != 100 {
		t.Fatalf("rect 1: got start=%d duration=%d", rects[1].Start, rects[1].Duration)
	}
	if len(rects[1].Tags) != 1 || rects[1].Tags[0].TagIndex != tags[1].Index || rects[1].Tags[0].Duration != 100 {
		t.Fatalf("rect 1 tags: got %+v", rects[1].Tags)
	}
}

func TestScenarioBeginClipping(t *testing.T) {
	path := writeTrace(t, twoStateMetadata,
		`{"entity":"A","time":0,"state":0}`,
		`{"entity":"A","time":80,"state":1}`,
	)

	cfg := config.Default()
	cfg.Begin = 50

	_, _, rects, e := collect(t, path, cfg)
	defer e.Destroy()

	want := []RectangleRecord{
		{Entity: "A", Start: 50, Duration: 30, States: []int64{30, 0}},
	}
	assertRects(t, rects, want)
}

func TestScenarioNoTagsDisablesTagTracking(t *testing.T) {
	path := writeTrace(t, `{"states":{"cpu":{"value":0}}}`,
		`{"entity":"A","time":0,"state":0,"tag":"user"}`,
		`{"entity":"A","time":100,"state":0}`,
	)

	cfg := config.Default()
	cfg.NoTags = true

	tags, _, rects, e := collect(t, path, cfg)
	defer e.Destroy()

	if len(tags) != 0 {
		t.Fatalf("got %d tag defs with notags set, want 0", len(tags))
	}
	if len(rects) != 1 || len(rects[0].Tags) != 0 {
		t.Fatalf("got rects %+v, want one untagged rectangle", rects)
	}
}

func TestEngineSingleUse(t *testing.T) {
	path := writeTrace(t, twoStateMetadata, `{"entity":"A","time":0,"state":0}`)

	e := Create(config.Default())
	defer e.Destroy()

	if _, err := e.Ingest(path, nil); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	if _, err := e.Ingest(path, nil); err != ErrAlreadyIngested {
		t.Fatalf("got %v, want ErrAlreadyIngested", err)
	}
}

func assertRects(t *testing.T, got []RectangleRecord, want []RectangleRecord) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d rectangles, want %d: got=%+v want=%+v", len(got), len(want), got, want)
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Entity != w.Entity || g.Start != w.Start || g.Duration != w.Duration {
			t.Errorf("rect %d: got {%s %d %d}, want {%s %d %d}",
				i, g.Entity, g.Start, g.Duration, w.Entity, w.Start, w.Duration)
			continue
		}
		if len(g.States) != len(w.States) {
			t.Errorf("rect %d: got %d states, want %d", i, len(g.States), len(w.States))
			continue
		}
		for j := range w.States {
			if g.States[j] != w.States[j] {
				t.Errorf("rect %d state %d: got %d, want %d", i, j, g.States[j], w.States[j])
			}
		}
	}
}
