package errors

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := NewRuntime("typecheck failed: no concrete variant", "main.em", 3)
	err.WithTrace("fun", "add", "main.em", 3)

	msg := err.Error()
	if !strings.HasPrefix(msg, "[RuntimeError] typecheck failed") {
		t.Fatalf("unexpected message: %q", msg)
	}
	if !strings.Contains(msg, "fun add (main.em:3)") {
		t.Fatalf("missing trace line: %q", msg)
	}
}

func TestExposeErrorHasNoLocation(t *testing.T) {
	err := NewExpose("unresolved distinct path: a.missing")
	if err.Kind != KindExpose {
		t.Fatalf("expected KindExpose, got %s", err.Kind)
	}
	if err.File != "" || err.Line != 0 {
		t.Fatalf("expected no location, got %s:%d", err.File, err.Line)
	}
}

func TestActionErrorMessage(t *testing.T) {
	err := NewAction("Write", "disk")
	want := "Write not allowed: try with --with-disk"
	if err.Message != want {
		t.Fatalf("got %q want %q", err.Message, want)
	}
}

func TestInternalErrorWrapsCause(t *testing.T) {
	err := NewInternal("invariant violated", "boom")
	if err.Unwrap() == nil {
		t.Fatal("expected wrapped cause")
	}
}

func TestMarshalJSONRecordShape(t *testing.T) {
	err := NewCompile("unknown symbol: foo", "main.em", 5)
	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("marshal failed: %v", jerr)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["Type"] != "CompileError" {
		t.Fatalf("unexpected Type: %v", decoded["Type"])
	}
	if _, ok := decoded["Payload"]; !ok {
		t.Fatal("missing Payload field")
	}
}

func TestIsHelper(t *testing.T) {
	var err error = NewCast("cannot coerce regex to num")
	if !Is(err, KindCast) {
		t.Fatal("expected Is to match KindCast")
	}
	if Is(err, KindRead) {
		t.Fatal("expected Is to reject KindRead")
	}
}
