// Package neo4j talks to a graph database over the legacy Neo4j HTTP REST
// dialect. It is the only producer of value.Node / value.Relationship: every
// entity in a result cell was hydrated here from the server's JSON.
package neo4j

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nordgraph/graphtool/pkg/record"
)

// QueryError reports a query the server rejected or failed to execute. Kind
// carries the server-side exception name.
type QueryError struct {
	Kind    string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Graph is a client for one graph database endpoint. All calls are
// synchronous and block until the server responds.
type Graph struct {
	base     string // http://host:7474, no trailing slash
	hostPort string
	username string
	password string
	client   *http.Client
}

// Option adjusts a Graph at construction.
type Option func(*Graph)

// WithBasicAuth attaches HTTP basic credentials to every request.
func WithBasicAuth(username, password string) Option {
	return func(g *Graph) {
		g.username = username
		g.password = password
	}
}

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Graph) {
		g.client = client
	}
}

// Dial builds a client for scheme://host:port. No connection is made until
// the first call.
func Dial(scheme, host string, port int, opts ...Option) *Graph {
	g := &Graph{
		base:     fmt.Sprintf("%s://%s:%d", scheme, host, port),
		hostPort: fmt.Sprintf("%s:%d", host, port),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HostPort returns "host:port" for prompts and banners.
func (g *Graph) HostPort() string {
	return g.hostPort
}

// cypherResponse is the wire shape of POST /db/data/cypher.
type cypherResponse struct {
	Columns []string            `json:"columns"`
	Data    [][]json.RawMessage `json:"data"`
}

// restError is the wire shape of an error response.
type restError struct {
	Message   string `json:"message"`
	Exception string `json:"exception"`
}

// Execute runs one query with the given parameter bindings and returns the
// resulting record set. Rows are hydrated eagerly; the returned RecordSet is
// still consumed forward-only, once.
func (g *Graph) Execute(ctx context.Context, query string, params map[string]any) (*record.RecordSet, error) {
	payload := map[string]any{"query": query}
	if len(params) > 0 {
		payload["params"] = params
	}
	body, err := g.post(ctx, g.base+"/db/data/cypher", payload)
	if err != nil {
		return nil, err
	}

	var resp cypherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}
	rows := make([][]any, len(resp.Data))
	for i, raw := range resp.Data {
		row := make([]any, len(raw))
		for j, cell := range raw {
			row[j], err = hydrate(cell)
			if err != nil {
				return nil, fmt.Errorf("decoding row %d: %w", i, err)
			}
		}
		rows[i] = row
	}
	return record.FromRows(resp.Columns, rows), nil
}

// Clear removes every relationship and node in the database.
func (g *Graph) Clear(ctx context.Context) error {
	for _, query := range []string{
		"MATCH ()-[r]->() DELETE r",
		"MATCH (n) DELETE n",
	} {
		rs, err := g.Execute(ctx, query, nil)
		if err != nil {
			return err
		}
		// Drain so the pass is complete before the next statement.
		for {
			if _, err := rs.Next(); err == io.EOF {
				break
			} else if err != nil {
				return err
			}
		}
	}
	return nil
}

// Version fetches the server version from the service root document.
func (g *Graph) Version(ctx context.Context) (string, error) {
	body, err := g.get(ctx, g.base+"/db/data/")
	if err != nil {
		return "", err
	}
	var root struct {
		Neo4jVersion string `json:"neo4j_version"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("decoding service root: %w", err)
	}
	return root.Neo4jVersion, nil
}

func (g *Graph) post(ctx context.Context, url string, payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req)
}

func (g *Graph) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return g.do(req)
}

func (g *Graph) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if g.username != "" {
		req.SetBasicAuth(g.username, g.password)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s: %w", g.hostPort, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", g.hostPort, err)
	}
	if resp.StatusCode >= 400 {
		var re restError
		if json.Unmarshal(body, &re) == nil && re.Message != "" {
			kind := re.Exception
			if kind == "" {
				kind = "QueryError"
			}
			return nil, &QueryError{Kind: kind, Message: re.Message}
		}
		return nil, fmt.Errorf("%s returned %s", g.hostPort, resp.Status)
	}
	return body, nil
}
