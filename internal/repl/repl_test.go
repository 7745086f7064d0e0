package repl

import (
	"strings"
	"testing"
)

func TestStartEvaluatesEachLineAgainstASharedVM(t *testing.T) {
	in := strings.NewReader("x := 2;\nx + 3;\nexit\n")
	var out strings.Builder

	Start(in, &out)

	got := out.String()
	if !strings.Contains(got, "5") {
		t.Fatalf("expected the second line to see x bound by the first, got:\n%s", got)
	}
}

func TestStartStopsOnExit(t *testing.T) {
	in := strings.NewReader("exit\n1;\n")
	var out strings.Builder

	Start(in, &out)

	if strings.Contains(out.String(), "1") {
		t.Fatal("expected the loop to stop at exit before reaching the next line")
	}
}

func TestStartReportsReadErrorsWithoutStopping(t *testing.T) {
	in := strings.NewReader("1 + ;\n1 + 1;\nexit\n")
	var out strings.Builder

	Start(in, &out)

	if !strings.Contains(out.String(), "2") {
		t.Fatalf("expected the loop to recover and still evaluate the next line, got:\n%s", out.String())
	}
}
