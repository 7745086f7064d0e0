// Package errors implements the language's error taxonomy (spec §7):
// ReadError, CompileError, RuntimeError, InternalError, ExposeError,
// ActionError and ModelCastError, each carrying enough context to render
// the "[kind] message" user-visible format with appended traces.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind identifies which of the seven error taxonomy members an error is.
type Kind string

const (
	KindRead     Kind = "ReadError"
	KindCompile  Kind = "CompileError"
	KindRuntime  Kind = "RuntimeError"
	KindInternal Kind = "InternalError"
	KindExpose   Kind = "ExposeError"
	KindAction   Kind = "ActionError"
	KindCast     Kind = "ModelCastError"
)

// Trace is one accumulated frame of context, rendered as
// "<tag> <name> (<file>:<line>)", or "<tag> <name>" when File is empty.
type Trace struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

func (t Trace) String() string {
	if t.File != "" {
		return fmt.Sprintf("%s %s (%s:%d)", t.Tag, t.Name, t.File, t.Line)
	}
	return fmt.Sprintf("%s %s", t.Tag, t.Name)
}

// LangError is the single concrete error type for all seven kinds; Kind
// discriminates which taxonomy member it represents.
type LangError struct {
	Kind    Kind
	Message string
	File    string
	Line    int
	Lexeme  string // ReadError: nearest offending lexeme/tag
	Traces  []Trace
	Cause   error // InternalError: the recovered panic, wrapped with a Go stack
}

func (e *LangError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Kind, e.Message)
	for _, t := range e.Traces {
		sb.WriteString("\n  ")
		sb.WriteString(t.String())
		if line := sourceLine(t.File, t.Line); line != "" {
			sb.WriteString("\n    ")
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func (e *LangError) Unwrap() error { return e.Cause }

// WithTrace appends one trace entry and returns e, for chaining up the
// call stack the way the compiler's trace(tag, name) guard does.
func (e *LangError) WithTrace(tag, name, file string, line int) *LangError {
	e.Traces = append(e.Traces, Trace{Tag: tag, Name: name, File: file, Line: line})
	return e
}

func sourceLine(file string, line int) string {
	if file == "" || line <= 0 {
		return ""
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	if line-1 >= len(lines) {
		return ""
	}
	return lines[line-1]
}

func NewRead(message, file string, line int, lexeme string) *LangError {
	return &LangError{Kind: KindRead, Message: message, File: file, Line: line, Lexeme: lexeme}
}

func NewCompile(message, file string, line int) *LangError {
	return &LangError{Kind: KindCompile, Message: message, File: file, Line: line}
}

func NewRuntime(message, file string, line int) *LangError {
	return &LangError{Kind: KindRuntime, Message: message, File: file, Line: line}
}

// NewInternal wraps a recovered panic (or any invariant violation) with a
// Go-level stack trace via github.com/pkg/errors, on top of the language
// error's own trace list.
func NewInternal(message string, cause interface{}) *LangError {
	var err error
	switch c := cause.(type) {
	case nil:
		err = nil
	case error:
		err = pkgerrors.WithStack(c)
	default:
		err = pkgerrors.WithStack(fmt.Errorf("%v", c))
	}
	return &LangError{Kind: KindInternal, Message: message, Cause: err}
}

func NewExpose(message string) *LangError {
	return &LangError{Kind: KindExpose, Message: message}
}

func NewAction(name, category string) *LangError {
	return &LangError{
		Kind:    KindAction,
		Message: fmt.Sprintf("%s not allowed: try with --with-%s", name, category),
	}
}

func NewCast(message string) *LangError {
	return &LangError{Kind: KindCast, Message: message}
}

// record is the {Type, Payload} wire shape from spec §7.
type record struct {
	Type    Kind `json:"Type"`
	Payload any  `json:"Payload"`
}

type payload struct {
	Message string  `json:"message"`
	File    string  `json:"file,omitempty"`
	Line    int     `json:"line,omitempty"`
	Lexeme  string  `json:"lexeme,omitempty"`
	Traces  []Trace `json:"traces,omitempty"`
}

// MarshalJSON renders the taxonomy member to the {Type, Payload} record
// spec §7 requires for machine consumers.
func (e *LangError) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		Type: e.Kind,
		Payload: payload{
			Message: e.Message,
			File:    e.File,
			Line:    e.Line,
			Lexeme:  e.Lexeme,
			Traces:  e.Traces,
		},
	})
}

// Is reports whether err is a LangError of the given kind.
func Is(err error, kind Kind) bool {
	le, ok := err.(*LangError)
	return ok && le.Kind == kind
}
