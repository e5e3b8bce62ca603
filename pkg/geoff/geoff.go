// Package geoff parses Geoff graph notation and loads it into a graph
// database. A Geoff document is line-oriented: node lines like
//
//	(alice {"name": "Alice"})
//
// relationship lines like
//
//	(alice)-[:KNOWS {"since": 1999}]->(bob)
//
// plus blank lines and # comments.
package geoff

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/nordgraph/graphtool/pkg/neo4j"
	"github.com/nordgraph/graphtool/pkg/record"
	"github.com/nordgraph/graphtool/pkg/value"
)

var (
	nodeLine = regexp.MustCompile(`^\((\w+)\s*(\{.*\})?\)$`)
	relLine  = regexp.MustCompile(`^\((\w+)\)-\[:(\w+)\s*(\{.*\})?\]->\((\w+)\)$`)
)

type nodeSpec struct {
	name  string
	props map[string]any
}

type relSpec struct {
	start, end string
	relType    string
	props      map[string]any
}

// Subgraph is one parsed Geoff document, holding nodes and relationships in
// document order.
type Subgraph struct {
	nodes []nodeSpec
	rels  []relSpec
}

// Binding maps a Geoff node name to the URI of the database node it ended up
// as. Bindings keep document order.
type Binding struct {
	Name string
	URI  string
}

// Load parses a Geoff document.
func Load(r io.Reader) (*Subgraph, error) {
	sub := &Subgraph{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := relLine.FindStringSubmatch(line); m != nil {
			props, err := parseProps(m[3])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			sub.rels = append(sub.rels, relSpec{start: m[1], relType: m[2], props: props, end: m[4]})
			continue
		}
		if m := nodeLine.FindStringSubmatch(line); m != nil {
			props, err := parseProps(m[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			sub.nodes = append(sub.nodes, nodeSpec{name: m[1], props: props})
			continue
		}
		return nil, fmt.Errorf("line %d: not a geoff node or relationship: %s", lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sub, nil
}

func parseProps(src string) (map[string]any, error) {
	if src == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	var props map[string]any
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("bad property map %s: %w", src, err)
	}
	return props, nil
}

// NodeCount reports how many node lines the document held.
func (s *Subgraph) NodeCount() int { return len(s.nodes) }

// RelationshipCount reports how many relationship lines the document held.
func (s *Subgraph) RelationshipCount() int { return len(s.rels) }

// InsertInto creates every node and relationship in the target database and
// returns the name→URI bindings of the created nodes, in document order.
func (s *Subgraph) InsertInto(ctx context.Context, g *neo4j.Graph) ([]Binding, error) {
	return s.load(ctx, g, false)
}

// MergeInto behaves like InsertInto but reuses existing nodes whose
// properties match a node line exactly, and existing relationships of the
// same type between the same endpoints.
func (s *Subgraph) MergeInto(ctx context.Context, g *neo4j.Graph) ([]Binding, error) {
	return s.load(ctx, g, true)
}

func (s *Subgraph) load(ctx context.Context, g *neo4j.Graph, merge bool) ([]Binding, error) {
	bindings := make([]Binding, 0, len(s.nodes))
	uris := make(map[string]string, len(s.nodes))
	for _, spec := range s.nodes {
		uri, err := s.loadNode(ctx, g, spec, merge)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", spec.name, err)
		}
		bindings = append(bindings, Binding{Name: spec.name, URI: uri})
		uris[spec.name] = uri
	}
	for _, spec := range s.rels {
		if err := s.loadRel(ctx, g, spec, uris, merge); err != nil {
			return nil, fmt.Errorf("relationship (%s)-[:%s]->(%s): %w",
				spec.start, spec.relType, spec.end, err)
		}
	}
	return bindings, nil
}

func (s *Subgraph) loadNode(ctx context.Context, g *neo4j.Graph, spec nodeSpec, merge bool) (string, error) {
	if merge && len(spec.props) > 0 {
		conditions := make([]string, 0, len(spec.props))
		params := make(map[string]any, len(spec.props))
		for key, v := range spec.props {
			conditions = append(conditions, fmt.Sprintf("n.`%s` = {p_%s}", key, key))
			params["p_"+key] = v
		}
		query := "MATCH (n) WHERE " + strings.Join(conditions, " AND ") + " RETURN n LIMIT 1"
		if uri, ok, err := firstEntityURI(ctx, g, query, params); err != nil {
			return "", err
		} else if ok {
			return uri, nil
		}
	}
	query := "CREATE (n) RETURN n"
	var params map[string]any
	if len(spec.props) > 0 {
		query = "CREATE (n {props}) RETURN n"
		params = map[string]any{"props": spec.props}
	}
	uri, ok, err := firstEntityURI(ctx, g, query, params)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("create returned no node")
	}
	return uri, nil
}

func (s *Subgraph) loadRel(ctx context.Context, g *neo4j.Graph, spec relSpec, uris map[string]string, merge bool) error {
	startURI, ok := uris[spec.start]
	if !ok {
		return fmt.Errorf("undefined node %q", spec.start)
	}
	endURI, ok := uris[spec.end]
	if !ok {
		return fmt.Errorf("undefined node %q", spec.end)
	}
	params := map[string]any{"a": nodeID(startURI), "b": nodeID(endURI)}
	if merge {
		query := fmt.Sprintf(
			"START a=node({a}), b=node({b}) MATCH a-[r:%s]->b RETURN r LIMIT 1", spec.relType)
		if _, found, err := firstEntityURI(ctx, g, query, params); err != nil {
			return err
		} else if found {
			return nil
		}
	}
	pattern := fmt.Sprintf("a-[r:%s]->b", spec.relType)
	if len(spec.props) > 0 {
		pattern = fmt.Sprintf("a-[r:%s {props}]->b", spec.relType)
		params["props"] = spec.props
	}
	_, _, err := firstEntityURI(ctx, g,
		"START a=node({a}), b=node({b}) CREATE "+pattern+" RETURN r", params)
	return err
}

// firstEntityURI runs query and returns the URI of the entity in the first
// cell of the first row, if any.
func firstEntityURI(ctx context.Context, g *neo4j.Graph, query string, params map[string]any) (string, bool, error) {
	rs, err := g.Execute(ctx, query, params)
	if err != nil {
		return "", false, err
	}
	row, err := rs.Next()
	if err == io.EOF {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	drain(rs)
	if len(row) == 0 {
		return "", false, nil
	}
	switch v := row[0].(type) {
	case *value.Node:
		return v.URI, true, nil
	case *value.Relationship:
		return v.URI, true, nil
	default:
		return "", false, fmt.Errorf("expected an entity, got %T", row[0])
	}
}

func drain(rs *record.RecordSet) {
	for {
		if _, err := rs.Next(); err != nil {
			return
		}
	}
}

// nodeID extracts the numeric node id from an entity URI.
func nodeID(uri string) json.Number {
	trimmed := strings.TrimRight(uri, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return json.Number(trimmed)
}
