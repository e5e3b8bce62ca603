package shell

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordgraph/graphtool/pkg/neo4j"
	"github.com/nordgraph/graphtool/pkg/record"
)

type call struct {
	query  string
	params map[string]any
}

// fakeGraph records every execution so tests can assert the multiplexing
// contract.
type fakeGraph struct {
	calls   []call
	columns []string
	rows    [][]any
	err     error
	version string
}

func (f *fakeGraph) Execute(ctx context.Context, query string, params map[string]any) (*record.RecordSet, error) {
	f.calls = append(f.calls, call{query: query, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return record.FromRows(f.columns, f.rows), nil
}

func (f *fakeGraph) Version(ctx context.Context) (string, error) {
	return f.version, nil
}

func (f *fakeGraph) HostPort() string {
	return "localhost:7474"
}

func newTestShell(graph *fakeGraph) (*Shell, *strings.Builder, *strings.Builder) {
	var out, errOut strings.Builder
	sh := New(graph, IO{In: strings.NewReader(""), Out: &out, Err: &errOut}, "text")
	return sh, &out, &errOut
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDispatch_BlankLineIsNoOp(t *testing.T) {
	graph := &fakeGraph{columns: []string{"n"}}
	sh, out, errOut := newTestShell(graph)

	assert.Equal(t, Continue, sh.Dispatch(context.Background(), "   "))
	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())
	assert.Empty(t, graph.calls)
}

func TestDispatch_ExitTerminates(t *testing.T) {
	sh, _, _ := newTestShell(&fakeGraph{})
	assert.Equal(t, Terminate, sh.Dispatch(context.Background(), "EXIT"))
	assert.Equal(t, Terminate, sh.Dispatch(context.Background(), "exit"))
}

func TestDispatch_HelpAndVersion(t *testing.T) {
	graph := &fakeGraph{version: "1.9.4"}
	sh, out, _ := newTestShell(graph)

	assert.Equal(t, Continue, sh.Dispatch(context.Background(), "help"))
	assert.Contains(t, out.String(), "exit")

	out.Reset()
	assert.Equal(t, Continue, sh.Dispatch(context.Background(), "VERSION"))
	assert.Equal(t, "Neo4j 1.9.4\n", out.String())
}

func TestDispatch_DefaultRunsWholeLineAsQuery(t *testing.T) {
	graph := &fakeGraph{columns: []string{"n"}}
	sh, _, _ := newTestShell(graph)

	sh.Dispatch(context.Background(), "MATCH (n) RETURN n LIMIT 1")
	require.Len(t, graph.calls, 1)
	assert.Equal(t, "MATCH (n) RETURN n LIMIT 1", graph.calls[0].query)
	assert.Nil(t, graph.calls[0].params)
}

func TestDispatch_UnknownResourceIsNonFatal(t *testing.T) {
	graph := &fakeGraph{}
	sh, _, errOut := newTestShell(graph)

	for _, line := range []string{"ADD WIDGETS x", "CLEAR WIDGETS", "SHOW WIDGETS"} {
		errOut.Reset()
		assert.Equal(t, Continue, sh.Dispatch(context.Background(), line))
		assert.Contains(t, errOut.String(), "WIDGETS")
	}
	assert.Empty(t, graph.calls, "resource errors must not fall through to query execution")
}

func TestAddParameters_MultiplexesQueries(t *testing.T) {
	graph := &fakeGraph{columns: []string{"n"}}
	sh, out, _ := newTestShell(graph)

	path := writeTempFile(t, "params.json",
		`[{"name": "Alice"}, {"name": "Bob"}, {"name": "Carol"}]`)
	sh.Dispatch(context.Background(), "ADD PARAMETERS "+path)
	assert.Contains(t, out.String(), "3 parameter sets added")
	require.Len(t, sh.ParameterSets(), 3)

	sh.Dispatch(context.Background(), "MATCH (n {name: {name}}) RETURN n")
	require.Len(t, graph.calls, 3)
	for i, name := range []string{"Alice", "Bob", "Carol"} {
		assert.Equal(t, name, graph.calls[i].params["name"], "stored order must hold")
	}
}

func TestAddParameters_SingleObject(t *testing.T) {
	sh, out, _ := newTestShell(&fakeGraph{})
	path := writeTempFile(t, "one.json", `{"name": "Alice"}`)
	sh.Dispatch(context.Background(), "ADD PARAMETERS "+path)
	assert.Contains(t, out.String(), "1 parameter set added")
	assert.Len(t, sh.ParameterSets(), 1)
}

func TestAddParameters_OtherShapeAddsNothing(t *testing.T) {
	sh, out, _ := newTestShell(&fakeGraph{})
	path := writeTempFile(t, "junk.json", `"just a string"`)
	sh.Dispatch(context.Background(), "ADD PARAMETERS "+path)
	assert.Contains(t, out.String(), "0 parameter sets added")
	assert.Empty(t, sh.ParameterSets())
}

func TestAddParameters_MissingFileIsNonFatal(t *testing.T) {
	sh, _, errOut := newTestShell(&fakeGraph{})
	assert.Equal(t, Continue, sh.Dispatch(context.Background(), "ADD PARAMETERS /no/such/file.json"))
	assert.NotEmpty(t, errOut.String())
}

func TestClearParameters_QueryRunsOnceUnbound(t *testing.T) {
	graph := &fakeGraph{columns: []string{"n"}}
	sh, _, _ := newTestShell(graph)

	path := writeTempFile(t, "params.json", `[{"a": 1}, {"a": 2}]`)
	sh.Dispatch(context.Background(), "ADD PARAMETERS "+path)
	require.Len(t, sh.ParameterSets(), 2)

	sh.Dispatch(context.Background(), "CLEAR PARAMETERS")
	assert.Empty(t, sh.ParameterSets())

	sh.Dispatch(context.Background(), "RETURN 1")
	require.Len(t, graph.calls, 1)
	assert.Nil(t, graph.calls[0].params)
}

func TestShowParameters(t *testing.T) {
	sh, out, _ := newTestShell(&fakeGraph{})
	path := writeTempFile(t, "params.json", `[{"name": "Alice"}]`)
	sh.Dispatch(context.Background(), "ADD PARAMETERS "+path)

	out.Reset()
	sh.Dispatch(context.Background(), "SHOW PARAMETERS")

	var shown []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out.String()), &shown))
	require.Len(t, shown, 1)
	assert.Equal(t, "Alice", shown[0]["name"])
}

func TestQueryError_ReportedAndLoopContinues(t *testing.T) {
	graph := &fakeGraph{err: &neo4j.QueryError{Kind: "SyntaxException", Message: "bad query"}}
	sh, _, errOut := newTestShell(graph)

	path := writeTempFile(t, "params.json", `[{"a": 1}, {"a": 2}]`)
	sh.Dispatch(context.Background(), "ADD PARAMETERS "+path)

	action := sh.Dispatch(context.Background(), "MATCH oops")
	assert.Equal(t, Continue, action)
	// One failure per parameter set; the second execution still happened.
	assert.Len(t, graph.calls, 2)
	assert.Equal(t, 2, strings.Count(errOut.String(), "SyntaxException: bad query"))
}

func TestExecute_RunsQueryFromFile(t *testing.T) {
	graph := &fakeGraph{columns: []string{"n"}}
	sh, _, _ := newTestShell(graph)

	path := writeTempFile(t, "query.cql", "MATCH (n) RETURN n")
	sh.Dispatch(context.Background(), "EXECUTE "+path)
	require.Len(t, graph.calls, 1)
	assert.Equal(t, "MATCH (n) RETURN n", graph.calls[0].query)
}

func TestExecute_MissingFileIsNonFatal(t *testing.T) {
	sh, _, errOut := newTestShell(&fakeGraph{})
	assert.Equal(t, Continue, sh.Dispatch(context.Background(), "EXECUTE /no/such/query.cql"))
	assert.NotEmpty(t, errOut.String())
}

func TestRun_ExitStopsReadingInput(t *testing.T) {
	graph := &fakeGraph{columns: []string{"n"}}
	var out, errOut strings.Builder
	sh := New(graph, IO{Out: &out, Err: &errOut}, "text")

	input := strings.NewReader("exit\nMATCH (n) RETURN n\n")
	require.NoError(t, sh.Run(context.Background(), NewScannerReader(input, &out)))
	assert.Empty(t, graph.calls, "input after EXIT must not be consumed")
}

func TestRun_EndOfInputEndsSession(t *testing.T) {
	graph := &fakeGraph{columns: []string{"n"}}
	var out, errOut strings.Builder
	sh := New(graph, IO{Out: &out, Err: &errOut}, "text")

	require.NoError(t, sh.Run(context.Background(), NewScannerReader(strings.NewReader(""), &out)))
	assert.Contains(t, out.String(), "⌁")
}

func TestPrompt_CountsParameterSets(t *testing.T) {
	sh, _, _ := newTestShell(&fakeGraph{})
	assert.Equal(t, "localhost:7474/cypher[0]> ", sh.Prompt())

	path := writeTempFile(t, "params.json", `[{"a": 1}, {"a": 2}]`)
	sh.Dispatch(context.Background(), "ADD PARAMETERS "+path)
	assert.Equal(t, "localhost:7474/cypher[2]> ", sh.Prompt())
}

func TestDispatch_RendersInSessionFormat(t *testing.T) {
	graph := &fakeGraph{columns: []string{"n"}, rows: [][]any{{1}}}
	sh, out, _ := newTestShell(graph)
	sh.Format = "csv"

	sh.Dispatch(context.Background(), "RETURN 1")
	assert.Equal(t, "\"n\"\n1\n", out.String())
}
