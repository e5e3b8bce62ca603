// Package value models the cell values a graph query can return: null,
// scalars, ordered lists, and node/relationship entities.
//
// Entities are hydrated exclusively by the transport layer (pkg/neo4j);
// nothing downstream constructs or mutates them. Telling a node apart from
// a relationship is always a type switch on *Node / *Relationship, never a
// field probe.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Node describes a graph node held in a result cell. Identity for
// deduplication and ordering is the URI string.
type Node struct {
	URI        string
	Properties map[string]any
}

// Relationship describes a typed relationship between two nodes, identified
// by URI like a node and carrying the URIs of its endpoints.
type Relationship struct {
	URI        string
	Type       string
	StartURI   string
	EndURI     string
	Properties map[string]any
}

// String renders the node in Geoff notation: (ref) or (ref {"k": v}).
func (n *Node) String() string {
	ref := refID(n.URI)
	if len(n.Properties) == 0 {
		return "(" + ref + ")"
	}
	return "(" + ref + " " + EncodeJSON(n.Properties) + ")"
}

// String renders the relationship in Geoff notation:
// (start)-[:TYPE {"k": v}]->(end).
func (r *Relationship) String() string {
	var b strings.Builder
	b.WriteString("(" + refID(r.StartURI) + ")-[:" + r.Type)
	if len(r.Properties) > 0 {
		b.WriteString(" " + EncodeJSON(r.Properties))
	}
	b.WriteString("]->(" + refID(r.EndURI) + ")")
	return b.String()
}

// refID extracts the trailing path segment of an entity URI, which is the
// server-assigned numeric id in the REST dialect.
func refID(uri string) string {
	trimmed := strings.TrimRight(uri, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// Stringify renders a value as plain unquoted text: null becomes the empty
// string, lists are space-joined, entities render as their URI, scalars as
// their natural text form.
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, " ")
	case *Node:
		return v.URI
	case *Relationship:
		return v.URI
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Quote renders a value so it can be embedded in a delimited field: null
// becomes the literal text null, lists are space-joined first and then
// encoded as one JSON string, entities encode as their URI string, scalars
// encode as JSON (falling back to their text form when the scalar has no
// native JSON encoding).
func Quote(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case []any:
		return EncodeJSON(Stringify(v))
	case *Node:
		return EncodeJSON(v.URI)
	case *Relationship:
		return EncodeJSON(v.URI)
	default:
		out, err := encodeJSON(v)
		if err != nil {
			return EncodeJSON(Stringify(v))
		}
		return out
	}
}

// JSONify renders a value for the JSON serializer. Unlike Quote it keeps
// lists as proper JSON arrays and expands entities into objects carrying
// their uri, properties and (for relationships) start/type/end.
func JSONify(v any) string {
	switch v := v.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = JSONify(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Node:
		return fmt.Sprintf(`{"uri": %s, "properties": %s}`,
			EncodeJSON(v.URI), EncodeJSON(v.Properties))
	case *Relationship:
		return fmt.Sprintf(`{"uri": %s, "properties": %s, "start": %s, "type": %s, "end": %s}`,
			EncodeJSON(v.URI), EncodeJSON(v.Properties),
			EncodeJSON(v.StartURI), EncodeJSON(v.Type), EncodeJSON(v.EndURI))
	default:
		return EncodeJSON(v)
	}
}

// EncodeJSON encodes v as compact JSON without HTML escaping, so non-ASCII
// text passes through as literal UTF-8. Values with no JSON encoding fall
// back to the JSON string of their text form.
func EncodeJSON(v any) string {
	out, err := encodeJSON(v)
	if err != nil {
		out, _ = encodeJSON(fmt.Sprintf("%v", v))
	}
	return out
}

func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encode appends a newline that has no business in a field.
	return strings.TrimRight(buf.String(), "\n"), nil
}
