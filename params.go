package hookgraph

import (
	"encoding/json"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// ParamsKey is the node data key written by the parameter inferencer.
const ParamsKey = "availableParams"

// DefaultSourceHandle is the output port assumed when an edge names no source handle.
const DefaultSourceHandle = "value"

// AvailableParam is a value a formatter node can read from one incoming edge.
// It is derived and never edited by hand.
type AvailableParam struct {
	Name    string `json:"name" mapstructure:"name"`
	Type    string `json:"type" mapstructure:"type"`
	Src     string `json:"src" mapstructure:"src"`
	NodeID  string `json:"nodeId" mapstructure:"nodeId"`
	Preview any    `json:"preview,omitempty" mapstructure:"preview"`
}

// InferType returns the runtime type tag of a preview value. present is false
// when the source node has no value under the handle name.
func InferType(v any, present bool) string {
	if !present {
		return "undefined"
	}
	if v == nil {
		return "null"
	}
	if _, ok := v.(json.Number); ok {
		return "number"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Map, reflect.Struct, reflect.Pointer:
		return "object"
	case reflect.Func:
		return "function"
	}
	return "any"
}

// InferParams derives the available parameters of target from its incoming
// edges, in edge order.
func InferParams(target string, nodes []Node, edges []Edge) []AvailableParam {
	byID := make(map[string]*Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}
	params := []AvailableParam{}
	for _, e := range edges {
		if e.Target != target {
			continue
		}
		name := DefaultSourceHandle
		if e.SourceHandle != nil {
			name = *e.SourceHandle
		}
		p := AvailableParam{Name: name, Type: "undefined", Src: "unknown", NodeID: e.Source}
		if src, ok := byID[e.Source]; ok {
			if src.Type != "" {
				p.Src = src.Type
			}
			preview, present := src.Data[name]
			p.Preview = preview
			p.Type = InferType(preview, present)
		}
		if p.Type == "" {
			p.Type = "any"
		}
		params = append(params, p)
	}
	return params
}

// StoredParams decodes the availableParams currently held in node data. Values
// that went through JSON come back as maps and are decoded as well.
func StoredParams(data map[string]any) []AvailableParam {
	raw, ok := data[ParamsKey]
	if !ok || raw == nil {
		return nil
	}
	if typed, ok := raw.([]AvailableParam); ok {
		return typed
	}
	var out []AvailableParam
	if err := mapstructure.Decode(raw, &out); err != nil {
		return nil
	}
	return out
}

func paramsEqual(a, b []AvailableParam) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type ||
			a[i].Src != b[i].Src || a[i].NodeID != b[i].NodeID {
			return false
		}
	}
	return true
}

// IsFormatter reports whether nodeType is a formatter-class type.
func IsFormatter(reg Registry, nodeType string) bool {
	meta, ok := lookup(reg, nodeType)
	return ok && meta.Kind == KindFormatter
}

// UpdateParams recomputes availableParams for the given target node ids,
// skipping ids that are not formatter nodes. Node data is only written when
// the derived list changed; the ids of written nodes are returned.
func UpdateParams(reg Registry, nodes []Node, edges []Edge, targets ...string) []string {
	if len(targets) == 0 {
		return nil
	}
	want := make(map[string]bool, len(targets))
	for _, id := range targets {
		want[id] = true
	}
	var changed []string
	for i := range nodes {
		n := &nodes[i]
		if !want[n.ID] || !IsFormatter(reg, n.Type) {
			continue
		}
		next := InferParams(n.ID, nodes, edges)
		if paramsEqual(StoredParams(n.Data), next) {
			continue
		}
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		n.Data[ParamsKey] = next
		changed = append(changed, n.ID)
	}
	return changed
}

// UpdateAllParams runs one full pass over every formatter node.
func UpdateAllParams(reg Registry, nodes []Node, edges []Edge) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return UpdateParams(reg, nodes, edges, ids...)
}
