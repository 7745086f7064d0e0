package ensure

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ember-lang/ember/internal/value"
)

func TestFromValueReadsLabelBoolPairs(t *testing.T) {
	m := value.NewMap()
	m.Set("adds", value.Bool(true))
	m.Set("subtracts", value.Bool(false))

	o, err := FromValue("arithmetic", m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Title != "arithmetic" {
		t.Fatalf("expected title arithmetic, got %q", o.Title)
	}
	if !o.Cases["adds"] || o.Cases["subtracts"] {
		t.Fatalf("unexpected cases: %+v", o.Cases)
	}
	if o.Passed() != 1 || o.Failed() != 1 {
		t.Fatalf("expected 1 passed, 1 failed, got %d/%d", o.Passed(), o.Failed())
	}
}

func TestFromValueRejectsNonMap(t *testing.T) {
	_, err := FromValue("bad", value.Num{})
	if err == nil {
		t.Fatal("expected an error for a non-map value")
	}
}

func TestReportAllPassed(t *testing.T) {
	m := value.NewMap()
	m.Set("adds", value.Bool(true))
	o, err := FromValue("arithmetic", m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := &Report{Outcomes: []*Outcome{o}, Elapsed: time.Millisecond}
	if !r.AllPassed() {
		t.Fatal("expected AllPassed to be true")
	}
	if r.Passed() != 1 || r.Failed() != 0 {
		t.Fatalf("expected 1/0, got %d/%d", r.Passed(), r.Failed())
	}
}

func TestReportPrintShowsEveryCase(t *testing.T) {
	adds := value.NewMap()
	adds.Set("adds", value.Bool(true))
	subtracts := value.NewMap()
	subtracts.Set("underflows", value.Bool(false))

	addsOutcome, err := FromValue("arithmetic", adds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	subOutcome, err := FromValue("edge cases", subtracts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := &Report{Outcomes: []*Outcome{addsOutcome, subOutcome}, Elapsed: 2 * time.Second}

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	for _, want := range []string{"arithmetic", "edge cases", "adds", "underflows", "1 passed, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected report to contain %q, got:\n%s", want, out)
		}
	}
}
