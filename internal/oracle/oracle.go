// Package oracle implements the client side of spec.md §6.3's module
// resolution protocol: a JSON-line request/response over a plain TCP
// connection. The oracle itself (what decides which files answer a
// given distinct path) is an external collaborator; this package only
// knows how to ask it a question and parse the answer.
package oracle

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/ember-lang/ember/internal/errors"
)

// request is the wire shape spec.md §6.3 names: {Command, Arg}.
type request struct {
	Command string `json:"Command"`
	Arg     string `json:"Arg"`
}

// response carries either a file list or null, meaning "not found".
type response struct {
	Result []string `json:"result"`
}

// Client dials a fresh connection per query rather than holding one
// open across the orchestrator's lifetime, matching the teacher's own
// network package (internal/network's TCP helpers all dial per call,
// with no persistent connection pool for short request/response
// exchanges like this one).
type Client struct {
	Addr    string
	Timeout time.Duration
}

// Dial builds a Client for addr with the teacher's usual 5-second
// connect/round-trip budget (internal/network.Connect uses the same
// figure for its own plain TCP dials).
func Dial(addr string) *Client {
	return &Client{Addr: addr, Timeout: 5 * time.Second}
}

// FilesFor asks the oracle which files answer a distinct path. An empty
// result (including the JSON-null case) is "not found" and is surfaced
// as an ExposeError per spec.md §4.8, not returned as an empty slice.
func (c *Client) FilesFor(distinct string) ([]string, error) {
	conn, err := net.DialTimeout("tcp", c.Addr, c.Timeout)
	if err != nil {
		return nil, errors.NewExpose(fmt.Sprintf("oracle unreachable at %s: %v", c.Addr, err))
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.Timeout)); err != nil {
		return nil, errors.NewExpose(fmt.Sprintf("oracle deadline: %v", err))
	}

	line, err := json.Marshal(request{Command: "FilesFor", Arg: distinct})
	if err != nil {
		return nil, errors.NewInternal("oracle request marshal", err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, errors.NewExpose(fmt.Sprintf("oracle write: %v", err))
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.NewExpose(fmt.Sprintf("oracle read: %v", err))
		}
		return nil, errors.NewExpose("oracle closed connection without a response")
	}

	var resp response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, errors.NewExpose(fmt.Sprintf("oracle malformed response: %v", err))
	}
	if len(resp.Result) == 0 {
		return nil, errors.NewExpose("no files for distinct " + distinct)
	}
	return resp.Result, nil
}
