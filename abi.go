package hookgraph

import (
	"regexp"
	"strings"
)

// Field is one flattened event output, as exposed to downstream nodes.
type Field struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Parent string `json:"parent,omitempty"`
}

// TupleSpec describes how a comma-joined tuple value is split back into
// named components.
type TupleSpec struct {
	Kind       string       `json:"kind"`
	GroupSize  int          `json:"groupSize"`
	Components []EventInput `json:"components"`
}

var indexedSuffix = regexp.MustCompile(`(?i)\s*indexed\s*$`)

// FlattenEventInputs expands tuple and tuple[] inputs into parent:child
// fields and returns the decode spec for each tuple input.
func FlattenEventInputs(inputs []EventInput) ([]Field, map[string]TupleSpec) {
	fields := []Field{}
	specs := map[string]TupleSpec{}
	for _, in := range inputs {
		base := strings.TrimSpace(indexedSuffix.ReplaceAllString(in.Type, ""))
		switch base {
		case "tuple", "tuple[]":
			comps := make([]EventInput, 0, len(in.Components))
			for _, c := range in.Components {
				fields = append(fields, Field{Name: in.Name + ":" + c.Name, Type: c.Type, Parent: in.Name})
				comps = append(comps, EventInput{Name: c.Name, Type: c.Type})
			}
			specs[in.Name] = TupleSpec{Kind: base, GroupSize: len(comps), Components: comps}
		default:
			fields = append(fields, Field{Name: in.Name, Type: in.Type})
		}
	}
	return fields, specs
}

func decodeTupleArray(value string, spec TupleSpec) []map[string]string {
	out := []map[string]string{}
	if value == "" || spec.GroupSize == 0 {
		return out
	}
	pieces := strings.Split(value, ",")
	for i := 0; i+spec.GroupSize <= len(pieces); i += spec.GroupSize {
		group := make(map[string]string, spec.GroupSize)
		for j, c := range spec.Components {
			group[c.Name] = pieces[i+j]
		}
		out = append(out, group)
	}
	return out
}

func decodeTuple(value string, spec TupleSpec) map[string]string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	if len(parts) < spec.GroupSize {
		return nil
	}
	out := make(map[string]string, spec.GroupSize)
	for i, c := range spec.Components {
		out[c.Name] = parts[i]
	}
	return out
}

// NormalizeEventPayload replaces comma-joined tuple values in a raw event
// with structured values according to specs.
func NormalizeEventPayload(raw map[string]any, specs map[string]TupleSpec) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for name, spec := range specs {
		s, _ := raw[name].(string)
		switch spec.Kind {
		case "tuple[]":
			out[name] = decodeTupleArray(s, spec)
		case "tuple":
			if t := decodeTuple(s, spec); t != nil {
				out[name] = t
			} else {
				out[name] = nil
			}
		}
	}
	return out
}
