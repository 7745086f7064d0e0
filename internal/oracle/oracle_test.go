package oracle

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"

	"github.com/ember-lang/ember/internal/errors"
)

// serve runs one fake oracle TCP server that hands handler the decoded
// request and writes back whatever it returns, then stops after one
// connection.
func serve(t *testing.T, handler func(request) response) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		scanner := bufio.NewScanner(conn)
		if !scanner.Scan() {
			return
		}
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}
		resp := handler(req)
		line, _ := json.Marshal(resp)
		conn.Write(append(line, '\n'))
	}()

	return ln.Addr().String()
}

func TestFilesForReturnsOracleResult(t *testing.T) {
	addr := serve(t, func(req request) response {
		if req.Command != "FilesFor" || req.Arg != "a.b.c" {
			t.Fatalf("unexpected request: %+v", req)
		}
		return response{Result: []string{"a.ember", "b.ember"}}
	})

	files, err := Dial(addr).FilesFor("a.b.c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0] != "a.ember" || files[1] != "b.ember" {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestFilesForEmptyResultIsExposeError(t *testing.T) {
	addr := serve(t, func(req request) response {
		return response{Result: nil}
	})

	_, err := Dial(addr).FilesFor("missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	le, ok := err.(*errors.LangError)
	if !ok || le.Kind != errors.KindExpose {
		t.Fatalf("expected ExposeError, got %#v", err)
	}
}

func TestFilesForUnreachableIsExposeError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(addr).FilesFor("a.b.c")
	if err == nil {
		t.Fatal("expected an error dialing a closed port")
	}
	le, ok := err.(*errors.LangError)
	if !ok || le.Kind != errors.KindExpose {
		t.Fatalf("expected ExposeError, got %#v", err)
	}
}
