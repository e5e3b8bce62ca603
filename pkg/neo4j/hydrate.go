package neo4j

import (
	"bytes"
	"encoding/json"

	"github.com/nordgraph/graphtool/pkg/value"
)

// hydrate turns one raw JSON result cell into a value-model value. Numbers
// decode as json.Number so they re-encode exactly as the server sent them.
// Objects carrying a "self" URI and a "data" property map are entities; the
// node/relationship decision is made here, once, and nowhere else.
func hydrate(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return hydrateValue(v), nil
}

func hydrateValue(v any) any {
	switch v := v.(type) {
	case []any:
		for i, item := range v {
			v[i] = hydrateValue(item)
		}
		return v
	case map[string]any:
		if entity, ok := hydrateEntity(v); ok {
			return entity
		}
		return v
	default:
		return v
	}
}

func hydrateEntity(obj map[string]any) (any, bool) {
	uri, ok := obj["self"].(string)
	if !ok {
		return nil, false
	}
	props, ok := obj["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	relType, hasType := obj["type"].(string)
	start, hasStart := obj["start"].(string)
	end, hasEnd := obj["end"].(string)
	if hasType && hasStart && hasEnd {
		return &value.Relationship{
			URI:        uri,
			Type:       relType,
			StartURI:   start,
			EndURI:     end,
			Properties: props,
		}, true
	}
	return &value.Node{URI: uri, Properties: props}, true
}
