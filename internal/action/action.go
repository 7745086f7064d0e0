// Package action implements the permission-gate model of spec §6.4: every
// side-effecting primitive (Say, Ask, Slurp, Burp, Write, ...) is tagged
// with a Category, and invocation is refused unless that category has been
// enabled on the Gate.
//
// The primitives themselves belong to the out-of-scope builtin standard
// library (spec §1); this package only owns the gate they consult.
package action

import "github.com/ember-lang/ember/internal/errors"

// Category names a side-effect class a host program can enable or deny.
type Category string

const (
	CategoryScreen Category = "screen"
	CategoryDisk   Category = "disk"
	CategoryNet    Category = "net"
)

// Gate tracks which categories are currently enabled.
type Gate struct {
	enabled map[Category]bool
}

// NewGate returns a Gate with the given categories pre-enabled, mirroring
// a CLI's `--with-disk --with-net` flags.
func NewGate(enabled ...Category) *Gate {
	g := &Gate{enabled: make(map[Category]bool, len(enabled))}
	for _, c := range enabled {
		g.enabled[c] = true
	}
	return g
}

// Enable turns a category on.
func (g *Gate) Enable(c Category) { g.enabled[c] = true }

// Allowed reports whether a category is currently enabled.
func (g *Gate) Allowed(c Category) bool { return g.enabled[c] }

// Check returns an ActionError naming name if category isn't enabled, nil
// otherwise. Native functions that perform a side effect call this before
// doing any work.
func (g *Gate) Check(name string, c Category) error {
	if g.Allowed(c) {
		return nil
	}
	return errors.NewAction(name, string(c))
}
