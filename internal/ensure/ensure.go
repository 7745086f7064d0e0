// Package ensure turns an `ensure "title" { should "case" expr ... }`
// block's own runtime value — a label->passed Map, per
// internal/compiler's compileEnsureTest — into a human-readable
// pass/fail report, the collaborator spec.md §6.1 calls "the ensure test
// reporter". Nothing here runs a test block; internal/vm already does
// that the moment it evaluates the EnsureTest expression. This package
// only interprets the resulting Map and prints it.
package ensure

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/value"
)

// Outcome is one ensure block's title plus its per-case pass/fail map.
type Outcome struct {
	Title string
	Cases map[string]bool
}

// FromValue reads an Outcome out of the *value.Map an EnsureTest
// expression evaluates to. It dies with an internal error if v isn't
// shaped that way — a caller should only reach for this once it already
// knows, from the source, that the expression it ran was an EnsureTest.
func FromValue(title string, v value.Value) (*Outcome, error) {
	m, ok := v.(*value.Map)
	if !ok {
		return nil, errors.NewInternal("ensure test result is not a map", v)
	}
	cases := make(map[string]bool, len(m.Keys()))
	for _, key := range m.Keys() {
		raw, _ := m.Get(key)
		cases[key] = value.Truthy(raw)
	}
	return &Outcome{Title: title, Cases: cases}, nil
}

// Passed/Failed/Total report this one outcome's own case counts.
func (o *Outcome) Passed() int {
	n := 0
	for _, ok := range o.Cases {
		if ok {
			n++
		}
	}
	return n
}

func (o *Outcome) Failed() int { return len(o.Cases) - o.Passed() }

func (o *Outcome) sortedLabels() []string {
	labels := make([]string, 0, len(o.Cases))
	for label := range o.Cases {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Report collects every outcome discovered during one compile+run pass
// (spec.md scopes test discovery itself to the collaborator CLI, not
// core) alongside the elapsed wall time that run took.
type Report struct {
	Outcomes []*Outcome
	Elapsed  time.Duration
}

func (r *Report) Passed() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Passed()
	}
	return n
}

func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Failed()
	}
	return n
}

func (r *Report) AllPassed() bool { return r.Failed() == 0 }

// Print writes a checkmark-per-case report followed by a summary line,
// in the teacher's own internal/testing.TextReporter texture (ANSI
// green/red symbols, a banner summary) adapted to this package's
// title->cases shape and humanizing the elapsed time via go-humanize
// rather than printing a raw time.Duration.
func (r *Report) Print(w io.Writer) {
	for _, o := range r.Outcomes {
		fmt.Fprintf(w, "\n%s\n", o.Title)
		for _, label := range o.sortedLabels() {
			if o.Cases[label] {
				fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", label)
			} else {
				fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", label)
			}
		}
	}

	now := time.Now()
	took := strings.TrimSpace(humanize.RelTime(now.Add(-r.Elapsed), now, "", ""))
	fmt.Fprintf(w, "\n%d passed, %d failed (took %s)\n", r.Passed(), r.Failed(), took)
}
