package action

import (
	"strings"
	"testing"
)

func TestGateDeniesUnlessEnabled(t *testing.T) {
	g := NewGate()
	if err := g.Check("Write", CategoryDisk); err == nil {
		t.Fatal("expected denial")
	} else if !strings.Contains(err.Error(), "try with --with-disk") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestGateAllowsEnabledCategory(t *testing.T) {
	g := NewGate(CategoryScreen)
	if err := g.Check("Say", CategoryScreen); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
}

func TestGateEnableAfterConstruction(t *testing.T) {
	g := NewGate()
	g.Enable(CategoryNet)
	if !g.Allowed(CategoryNet) {
		t.Fatal("expected net to be enabled")
	}
}
