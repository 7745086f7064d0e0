package main

import "testing"

func TestParseArgsReadsEveryFlag(t *testing.T) {
	opts, err := parseArgs([]string{"-r", "-m", "-O", "2", "-e", "1", "prog.ember"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.printResult || !opts.measure {
		t.Fatalf("expected printResult and measure set, got %+v", opts)
	}
	if opts.optimizeLevel != 2 || opts.verboseExpose != 1 {
		t.Fatalf("expected -O 2 -e 1, got %+v", opts)
	}
	if opts.file != "prog.ember" {
		t.Fatalf("expected file prog.ember, got %q", opts.file)
	}
}

func TestParseArgsHelpReturnsNil(t *testing.T) {
	opts, err := parseArgs([]string{"-h"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts != nil {
		t.Fatal("expected nil options for -h")
	}
}

func TestParseArgsRejectsSecondPositionalArgument(t *testing.T) {
	_, err := parseArgs([]string{"a.ember", "b.ember"})
	if err == nil {
		t.Fatal("expected an error for two positional arguments")
	}
}

func TestParseArgsORequiresLevel(t *testing.T) {
	_, err := parseArgs([]string{"-O"})
	if err == nil {
		t.Fatal("expected an error for -O with no level")
	}
}

func TestParseIntRejectsNonDigits(t *testing.T) {
	if _, err := parseInt("3x"); err == nil {
		t.Fatal("expected an error for a non-numeric level")
	}
}
