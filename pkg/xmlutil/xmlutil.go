// Package xmlutil converts XML documents to graph form: a Cypher CREATE
// statement or a Geoff document. Every element becomes a node whose
// properties are its attributes plus its trimmed character data (under the
// key "text"); nesting becomes a relationship typed after the child element.
package xmlutil

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/nordgraph/graphtool/pkg/value"
)

type element struct {
	id    int
	name  string
	props map[string]any
}

type edge struct {
	parent, child int
	relType       string
}

type tree struct {
	elements []element
	edges    []edge
}

var relTypeClean = regexp.MustCompile(`\W+`)

// parse reads an XML document into a flat element/edge list. prefixes maps
// namespace prefixes to namespace URIs; names in a registered namespace are
// qualified as prefix_local, others keep their local name.
func parse(r io.Reader, prefixes map[string]string) (*tree, error) {
	byURI := make(map[string]string, len(prefixes))
	for prefix, uri := range prefixes {
		byURI[uri] = prefix
	}
	qualify := func(name xml.Name) string {
		if prefix, ok := byURI[name.Space]; ok {
			return prefix + "_" + name.Local
		}
		return name.Local
	}

	t := &tree{}
	var stack []int
	var texts []*strings.Builder
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing xml: %w", err)
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			id := len(t.elements)
			props := map[string]any{}
			for _, attr := range tok.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				props[qualify(attr.Name)] = attr.Value
			}
			name := qualify(tok.Name)
			t.elements = append(t.elements, element{id: id, name: name, props: props})
			if len(stack) > 0 {
				relType := strings.ToUpper(relTypeClean.ReplaceAllString(name, "_"))
				t.edges = append(t.edges, edge{parent: stack[len(stack)-1], child: id, relType: relType})
			}
			stack = append(stack, id)
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(tok)
			}
		case xml.EndElement:
			id := stack[len(stack)-1]
			if text := strings.TrimSpace(texts[len(texts)-1].String()); text != "" {
				if _, taken := t.elements[id].props["text"]; !taken {
					t.elements[id].props["text"] = text
				}
			}
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		}
	}
	if len(t.elements) == 0 {
		return nil, fmt.Errorf("document holds no elements")
	}
	return t, nil
}

// ToCypher converts an XML document to one Cypher CREATE statement building
// the equivalent subgraph.
func ToCypher(r io.Reader, prefixes map[string]string) (string, error) {
	t, err := parse(r, prefixes)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(t.elements)+len(t.edges))
	for _, el := range t.elements {
		parts = append(parts, fmt.Sprintf("(n%d %s)", el.id, cypherMap(el.name, el.props)))
	}
	for _, e := range t.edges {
		parts = append(parts, fmt.Sprintf("(n%d)-[:%s]->(n%d)", e.parent, e.relType, e.child))
	}
	return "CREATE " + strings.Join(parts, ",\n       "), nil
}

// ToGeoff converts an XML document to Geoff node and relationship lines.
func ToGeoff(r io.Reader, prefixes map[string]string) (string, error) {
	t, err := parse(r, prefixes)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, el := range t.elements {
		props := withElement(el.name, el.props)
		b.WriteString(fmt.Sprintf("(n%d %s)\n", el.id, value.EncodeJSON(props)))
	}
	for _, e := range t.edges {
		b.WriteString(fmt.Sprintf("(n%d)-[:%s]->(n%d)\n", e.parent, e.relType, e.child))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// cypherMap renders a property map as a Cypher map literal with backquoted,
// sorted keys, the element name included under "element".
func cypherMap(name string, props map[string]any) string {
	merged := withElement(name, props)
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fields := make([]string, len(keys))
	for i, key := range keys {
		fields[i] = fmt.Sprintf("`%s`: %s", key, value.EncodeJSON(merged[key]))
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

// withElement adds the element tag under "element", a key XML attribute
// names cannot collide with ("element" attributes are rare and lose).
func withElement(name string, props map[string]any) map[string]any {
	merged := make(map[string]any, len(props)+1)
	for key, v := range props {
		merged[key] = v
	}
	merged["element"] = name
	return merged
}
