package hookgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ChangeFunc pushes an in-place data patch for a node.
type ChangeFunc func(nodeID string, patch map[string]any)

// Bindings holds live callbacks keyed by node id. It is never persisted.
type Bindings map[string]ChangeFunc

// For returns the callback bound to nodeID, or nil.
func (b Bindings) For(nodeID string) ChangeFunc {
	if b == nil {
		return nil
	}
	return b[nodeID]
}

// Sanitize returns a deep copy of nodes and edges with every value that cannot
// be serialized removed at any depth. Functions and channels are dropped
// and non-finite numbers become null.
func Sanitize(nodes []Node, edges []Edge) Definition {
	def := Definition{
		Nodes: make([]Node, 0, len(nodes)),
		Edges: make([]Edge, 0, len(edges)),
	}
	for _, n := range nodes {
		n.Data = stripMap(n.Data)
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		def.Nodes = append(def.Nodes, n)
	}
	for _, e := range edges {
		e.SourceHandle = cloneHandle(e.SourceHandle)
		e.TargetHandle = cloneHandle(e.TargetHandle)
		e.Data = stripMap(e.Data)
		def.Edges = append(def.Edges, e)
	}
	return def
}

// Clone returns a deep copy of the definition.
func (d Definition) Clone() Definition {
	return Sanitize(d.Nodes, d.Edges)
}

// Rehydrate turns a persisted definition into live nodes and edges. The
// change callback is bound to every node through the returned side-table.
// def is not modified.
func Rehydrate(def Definition, onChange ChangeFunc) ([]Node, []Edge, Bindings) {
	live := def.Clone()
	bindings := make(Bindings, len(live.Nodes))
	if onChange != nil {
		for _, n := range live.Nodes {
			bindings[n.ID] = onChange
		}
	}
	return live.Nodes, live.Edges, bindings
}

func cloneHandle(h *string) *string {
	if h == nil {
		return nil
	}
	v := *h
	return &v
}

// maxStripDepth bounds the walk over reference cycles, which JSON could not
// encode either.
const maxStripDepth = 64

var marshalerType = reflect.TypeFor[json.Marshaler]()

func stripMap(m map[string]any) map[string]any {
	return stripMapAt(m, 0)
}

func stripMapAt(m map[string]any, depth int) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if cv, ok := stripValue(v, depth+1); ok {
			out[k] = cv
		}
	}
	return out
}

// stripValue copies v into a form JSON can encode, reporting false when v
// itself must be dropped. Pointers are followed, structs that hold
// unencodable values become maps keyed by their JSON names, and non-finite
// floats become null.
func stripValue(v any, depth int) (any, bool) {
	if depth > maxStripDepth {
		return nil, false
	}
	switch t := v.(type) {
	case nil:
		return nil, true
	case map[string]any:
		return stripMapAt(t, depth), true
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if cv, ok := stripValue(item, depth+1); ok {
				out = append(out, cv)
			}
		}
		return out, true
	case float64:
		if !finite(t) {
			return nil, true
		}
		return t, true
	case float32:
		if !finite(float64(t)) {
			return nil, true
		}
		return t, true
	case string, bool, int, int64, int32, json.Number:
		return t, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, false
	case reflect.Float32, reflect.Float64:
		if !finite(rv.Float()) {
			return nil, true
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, true
		}
		return stripValue(rv.Elem().Interface(), depth+1)
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if cv, ok := stripValue(iter.Value().Interface(), depth+1); ok {
				out[mapKey(iter.Key())] = cv
			}
		}
		return out, true
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return v, true
		}
		if encodable(rv, depth) {
			return v, true
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if cv, ok := stripValue(rv.Index(i).Interface(), depth+1); ok {
				out = append(out, cv)
			}
		}
		return out, true
	case reflect.Struct:
		if rv.Type().Implements(marshalerType) || encodable(rv, depth) {
			return v, true
		}
		return stripStruct(rv, depth), true
	}
	return v, true
}

// stripStruct renders the exported fields of a struct the way encoding/json
// names them: json tags, "-" and omitempty are honoured and untagged
// embedded structs are flattened.
func stripStruct(rv reflect.Value, depth int) map[string]any {
	out := map[string]any{}
	embedded := map[string]any{}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}
		fv := rv.Field(i)
		if f.Anonymous && name == "" {
			ev := fv
			if ev.Kind() == reflect.Pointer {
				if ev.IsNil() {
					continue
				}
				ev = ev.Elem()
			}
			if ev.Kind() == reflect.Struct {
				for k, v := range stripStruct(ev, depth+1) {
					embedded[k] = v
				}
				continue
			}
		}
		if name == "" {
			name = f.Name
		}
		if strings.Contains(opts, "omitempty") && emptyValue(fv) {
			continue
		}
		if cv, ok := stripValue(fv.Interface(), depth+1); ok {
			out[name] = cv
		}
	}
	for k, v := range embedded {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// encodable reports whether rv holds nothing that stripValue would change.
func encodable(rv reflect.Value, depth int) bool {
	if depth > maxStripDepth {
		return false
	}
	switch rv.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil() || encodable(rv.Elem(), depth+1)
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if !encodable(iter.Value(), depth+1) {
				return false
			}
		}
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		for i := 0; i < rv.Len(); i++ {
			if !encodable(rv.Index(i), depth+1) {
				return false
			}
		}
	case reflect.Struct:
		if rv.Type().Implements(marshalerType) {
			return true
		}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() && !encodable(rv.Field(i), depth+1) {
				return false
			}
		}
	}
	return true
}

func emptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Struct:
		return false
	}
	return v.IsZero()
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

type contentNode struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type contentEdge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	Type         *string        `json:"type"`
	Data         map[string]any `json:"data"`
	SourceHandle *string        `json:"sourceHandle"`
	TargetHandle *string        `json:"targetHandle"`
}

type contentShape struct {
	Nodes []contentNode `json:"nodes"`
	Edges []contentEdge `json:"edges"`
}

func normalizeForContent(d Definition) contentShape {
	shape := contentShape{
		Nodes: make([]contentNode, 0, len(d.Nodes)),
		Edges: make([]contentEdge, 0, len(d.Edges)),
	}
	for _, n := range d.Nodes {
		data := stripMap(n.Data)
		if data == nil {
			data = map[string]any{}
		}
		shape.Nodes = append(shape.Nodes, contentNode{ID: n.ID, Type: n.Type, Data: data})
	}
	for _, e := range d.Edges {
		data := stripMap(e.Data)
		if data == nil {
			data = map[string]any{}
		}
		var typ *string
		if e.Type != "" {
			typ = &e.Type
		}
		shape.Edges = append(shape.Edges, contentEdge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			Type:         typ,
			Data:         data,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		})
	}
	return shape
}

// ContentEqual compares two definitions on their semantic content only:
// positions, dimensions and selection are ignored. The comparison is
// order-sensitive; the same nodes in a different order are not equal.
func ContentEqual(a, b Definition) bool {
	return jsonEqual(normalizeForContent(a), normalizeForContent(b))
}

// Equal compares two definitions on their full persisted shape.
func Equal(a, b Definition) bool {
	return jsonEqual(a.Clone(), b.Clone())
}

func jsonEqual(a, b any) bool {
	ab, err := canonicalJSON(a)
	if err != nil {
		return false
	}
	bb, err := canonicalJSON(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// canonicalJSON encodes v with every object's keys sorted, so typed structs
// and their decoded map form compare equal.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
