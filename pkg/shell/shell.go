// Package shell implements the interactive session: a line-oriented command
// grammar layered over one-shot query execution, with a session-scoped list
// of parameter sets that every query is multiplexed across.
package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nordgraph/graphtool/pkg/neo4j"
	"github.com/nordgraph/graphtool/pkg/record"
	"github.com/nordgraph/graphtool/pkg/render"
)

const help = `Enter Cypher or one of the following commands:
----
exit                    - exit the shell
help                    - display this help message
version                 - show the remote server version
execute <file>          - run the query stored in <file>
add parameters <file>   - load parameter sets from a JSON file
show parameters         - display the stored parameter sets
clear parameters        - discard all stored parameter sets
----
`

// Action tells the read loop what to do after a line has been dispatched.
type Action int

const (
	// Continue returns to the read state.
	Continue Action = iota
	// Terminate ends the session; no further input is read.
	Terminate
)

// Executor is the transport surface the shell drives. *neo4j.Graph
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, query string, params map[string]any) (*record.RecordSet, error)
	Version(ctx context.Context) (string, error)
	HostPort() string
}

// IO carries the session's streams. The shell never touches process-global
// state; everything it prints goes through here.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// LineReader supplies input lines, one per prompt. io.EOF ends the session.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Shell is one interactive session. Format and Lang persist across lines;
// the parameter-set list lives exactly as long as the session.
type Shell struct {
	graph  Executor
	io     IO
	Lang   string
	Format string

	paramSets []map[string]any
}

// New builds a session with the default language (cypher) and the given
// output format.
func New(graph Executor, streams IO, format string) *Shell {
	return &Shell{
		graph:  graph,
		io:     streams,
		Lang:   "cypher",
		Format: format,
	}
}

// Prompt renders "host:port/lang[N]> " where N counts stored parameter sets.
func (s *Shell) Prompt() string {
	return fmt.Sprintf("%s/%s[%d]> ", s.graph.HostPort(), s.Lang, len(s.paramSets))
}

// ParameterSets exposes the stored sets in insertion order.
func (s *Shell) ParameterSets() []map[string]any {
	return s.paramSets
}

// Run drives the read loop until Terminate or end of input.
func (s *Shell) Run(ctx context.Context, lines LineReader) error {
	for {
		line, err := lines.ReadLine(s.Prompt())
		if err == io.EOF {
			fmt.Fprintln(s.io.Out, "⌁")
			return nil
		}
		if err != nil {
			return err
		}
		if s.Dispatch(ctx, line) == Terminate {
			return nil
		}
	}
}

// Dispatch classifies one input line and runs the matching transition. Any
// line whose first token is not a recognized command is executed as a query;
// that is the default transition, not an error.
func (s *Shell) Dispatch(ctx context.Context, line string) Action {
	cl := NewCommandLine(line)
	if !cl.HasMore() {
		return Continue
	}
	switch strings.ToUpper(cl.Peek()) {
	case "HELP":
		fmt.Fprint(s.io.Out, help)
	case "EXIT":
		return Terminate
	case "VERSION":
		s.showVersion(ctx)
	case "EXECUTE":
		cl.Pop()
		s.executeFromFile(ctx, cl.Pop())
	case "ADD":
		cl.Pop()
		s.resource(cl, func(cl *CommandLine) { s.addParameters(cl.Pop()) })
	case "CLEAR":
		cl.Pop()
		s.resource(cl, func(*CommandLine) { s.paramSets = nil })
	case "SHOW":
		cl.Pop()
		s.resource(cl, func(*CommandLine) { s.showParameters() })
	default:
		s.RunQuery(ctx, cl.Text())
	}
	return Continue
}

// resource handles the second token of ADD/CLEAR/SHOW. Only PARAMETERS is
// recognized; anything else is reported and the session carries on.
func (s *Shell) resource(cl *CommandLine, handle func(*CommandLine)) {
	subject := cl.Pop()
	if strings.ToUpper(subject) != "PARAMETERS" {
		fmt.Fprintf(s.io.Err, "Bad command: unknown resource %q\n", subject)
		return
	}
	handle(cl)
}

// RunQuery executes query once per stored parameter set, in stored order, or
// exactly once unbound when none are stored. Executions are independent: an
// error in one is reported and the rest still run.
func (s *Shell) RunQuery(ctx context.Context, query string) {
	if len(s.paramSets) == 0 {
		s.runOnce(ctx, query, nil)
		return
	}
	for _, params := range s.paramSets {
		s.runOnce(ctx, query, params)
	}
}

func (s *Shell) runOnce(ctx context.Context, query string, params map[string]any) {
	rs, err := s.graph.Execute(ctx, query, params)
	if err != nil {
		s.report(err)
		return
	}
	if err := render.Write(s.io.Out, s.Format, rs); err != nil {
		s.report(err)
	}
}

func (s *Shell) report(err error) {
	var qe *neo4j.QueryError
	if errors.As(err, &qe) {
		fmt.Fprintf(s.io.Err, "%s: %s\n", qe.Kind, qe.Message)
		return
	}
	fmt.Fprintln(s.io.Err, err)
}

func (s *Shell) showVersion(ctx context.Context) {
	version, err := s.graph.Version(ctx)
	if err != nil {
		s.report(err)
		return
	}
	fmt.Fprintln(s.io.Out, "Neo4j "+version)
}

// executeFromFile loads a query from path and runs it like an inline query.
// Read errors are reported and the session carries on.
func (s *Shell) executeFromFile(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(s.io.Err, "Bad command: EXECUTE needs a file path")
		return
	}
	query, err := os.ReadFile(expandUser(path))
	if err != nil {
		s.report(err)
		return
	}
	s.RunQuery(ctx, string(query))
}

// addParameters loads parameter sets from a JSON file: an array of objects
// adds one set per object, a single object adds one set, anything else adds
// none.
func (s *Shell) addParameters(path string) {
	if path == "" {
		fmt.Fprintln(s.io.Err, "Bad command: ADD PARAMETERS needs a file path")
		return
	}
	data, err := os.ReadFile(expandUser(path))
	if err != nil {
		s.report(err)
		return
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		s.report(err)
		return
	}
	count := 0
	switch parsed := parsed.(type) {
	case []any:
		for _, entry := range parsed {
			if set, ok := entry.(map[string]any); ok {
				s.paramSets = append(s.paramSets, set)
				count++
			}
		}
	case map[string]any:
		s.paramSets = append(s.paramSets, parsed)
		count = 1
	}
	if count == 1 {
		fmt.Fprintln(s.io.Out, "1 parameter set added")
	} else {
		fmt.Fprintf(s.io.Out, "%d parameter sets added\n", count)
	}
}

func (s *Shell) showParameters() {
	out, err := json.MarshalIndent(s.paramSets, "", "    ")
	if err != nil {
		s.report(err)
		return
	}
	fmt.Fprintln(s.io.Out, string(out))
}

func expandUser(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// ScannerReader reads lines from a plain stream, echoing the prompt to the
// output stream first. Used when stdin is not a terminal; the interactive
// path uses a line editor instead.
type ScannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewScannerReader wraps in, writing prompts to out.
func NewScannerReader(in io.Reader, out io.Writer) *ScannerReader {
	return &ScannerReader{scanner: bufio.NewScanner(in), out: out}
}

// ReadLine writes the prompt and returns the next line, or io.EOF when the
// stream ends.
func (r *ScannerReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}
