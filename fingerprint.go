package hookgraph

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// TriggerType is the node type whose configuration decides deployability.
const TriggerType = "ContractEvent"

// EventInput is one input of an event ABI fragment.
type EventInput struct {
	Name       string       `json:"name" mapstructure:"name"`
	Type       string       `json:"type" mapstructure:"type"`
	Indexed    bool         `json:"indexed,omitempty" mapstructure:"indexed"`
	Components []EventInput `json:"components,omitempty" mapstructure:"components"`
}

// EventABI is an event fragment of a contract ABI.
type EventABI struct {
	Name   string       `json:"name" mapstructure:"name"`
	Inputs []EventInput `json:"inputs" mapstructure:"inputs"`
}

// Selector renders the canonical name(type1,type2,...) form.
func (a EventABI) Selector() string {
	name := a.Name
	if name == "" {
		name = "event:?"
	}
	types := make([]string, 0, len(a.Inputs))
	for _, in := range a.Inputs {
		t := in.Type
		if t == "" {
			t = "unknown"
		}
		types = append(types, t)
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// TriggerConfig is the identity-bearing configuration of a trigger node.
type TriggerConfig struct {
	Address    string    `mapstructure:"address"`
	EventABI   *EventABI `mapstructure:"eventAbi"`
	NetworkKey string    `mapstructure:"networkKey"`
	Network    string    `mapstructure:"network"`
}

var whitespace = regexp.MustCompile(`\s+`)

// NetworkID returns the normalized network identifier.
func (c TriggerConfig) NetworkID() string {
	if c.NetworkKey != "" {
		return c.NetworkKey
	}
	return whitespace.ReplaceAllString(strings.ToLower(c.Network), "-")
}

// Configured reports whether every identity field is set.
func (c TriggerConfig) Configured() bool {
	return c.Address != "" && c.EventABI != nil && (c.NetworkKey != "" || c.Network != "")
}

// Missing lists the fields a deploy requires that are not set.
func (c TriggerConfig) Missing() []string {
	var missing []string
	if c.Address == "" {
		missing = append(missing, "address")
	}
	if c.EventABI == nil {
		missing = append(missing, "event ABI")
	}
	if c.NetworkKey == "" && c.Network == "" {
		missing = append(missing, "network")
	}
	return missing
}

// DecodeTrigger decodes a trigger node's data. An eventAbi given as a JSON
// string is parsed. Identity fields holding a falsy value (null, "", false,
// 0, NaN) are left unset. ABI parts of the wrong shape read as empty: inputs
// that are not a list give no inputs, an input that is not an object has an
// unknown type.
func DecodeTrigger(data map[string]any) (TriggerConfig, error) {
	var cfg TriggerConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(lenientABI),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(data); err != nil {
		return cfg, fmt.Errorf("hookgraph: decode trigger: %w", err)
	}
	if !truthy(data["address"]) {
		cfg.Address = ""
	}
	if !truthy(data["networkKey"]) {
		cfg.NetworkKey = ""
	}
	if !truthy(data["network"]) {
		cfg.Network = ""
	}
	if raw, ok := data["eventAbi"].(string); !truthy(data["eventAbi"]) || ok && strings.TrimSpace(raw) == "" {
		cfg.EventABI = nil
	}
	return cfg, nil
}

var (
	abiType    = reflect.TypeOf(EventABI{})
	inputType  = reflect.TypeOf(EventInput{})
	inputsType = reflect.TypeOf([]EventInput{})
)

func lenientABI(from, to reflect.Type, data any) (any, error) {
	switch to {
	case abiType:
		if from.Kind() == reflect.String {
			return abiFromString(reflect.ValueOf(data).String())
		}
		if from.Kind() != reflect.Map {
			return map[string]any{}, nil
		}
	case inputsType:
		if from.Kind() != reflect.Slice && from.Kind() != reflect.Array {
			return []any{}, nil
		}
	case inputType:
		if from.Kind() != reflect.Map {
			return map[string]any{}, nil
		}
	}
	return data, nil
}

func abiFromString(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}, nil
	}
	var abi map[string]any
	if err := json.Unmarshal([]byte(s), &abi); err != nil {
		return nil, err
	}
	return abi, nil
}

// truthy follows the loose truthiness of the editor's data model: null,
// empty strings, false, zero and NaN are unset.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0 && !math.IsNaN(f)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// ConfiguredTrigger returns the first fully configured trigger node.
func ConfiguredTrigger(def Definition) (Node, TriggerConfig, bool) {
	for _, n := range def.Nodes {
		if n.Type != TriggerType {
			continue
		}
		cfg, err := DecodeTrigger(n.Data)
		if err != nil || !cfg.Configured() {
			continue
		}
		return n, cfg, true
	}
	return Node{}, TriggerConfig{}, false
}

// Fingerprint returns the canonical identity of the definition's configured
// trigger, or "" when no trigger is fully configured.
func Fingerprint(def Definition) string {
	_, cfg, ok := ConfiguredTrigger(def)
	if !ok {
		return ""
	}
	return cfg.NetworkID() + "|" + strings.ToLower(cfg.Address) + "|" + cfg.EventABI.Selector()
}

// CheckDeployable validates that def has at least one trigger node and that
// every trigger node is fully configured.
func CheckDeployable(def Definition) error {
	var triggers []Node
	for _, n := range def.Nodes {
		if n.Type == TriggerType {
			triggers = append(triggers, n)
		}
	}
	if len(triggers) == 0 {
		return rejectf("Add at least one Contract Event node before deploying.")
	}
	for _, n := range triggers {
		cfg, err := DecodeTrigger(n.Data)
		if err != nil {
			return rejectf("Contract Event node %s has an unreadable configuration: %v", n.ID, err)
		}
		if missing := cfg.Missing(); len(missing) > 0 {
			return rejectf("Contract Event node %s is missing %s. Open it to finish configuration.",
				n.ID, strings.Join(missing, ", "))
		}
	}
	return nil
}
