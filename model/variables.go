package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskgrid/taskgrid/internal/yml"
)

// Variable represents a named task value.
type Variable struct {
	Name  string      `json:"name" yaml:"name"`
	Value interface{} `json:"value" yaml:"value"`
}

// Variables is an ordered collection of task variables. Definition order is
// preserved across JSON and YAML round trips.
type Variables []*Variable

// Add appends a variable; an existing name is updated in place so the
// collection keeps first-seen order with last-set value.
func (v *Variables) Add(name string, value interface{}) {
	for _, item := range *v {
		if item.Name == name {
			item.Value = value
			return
		}
	}
	*v = append(*v, &Variable{Name: name, Value: value})
}

// Get retrieves a variable value by name.
func (v Variables) Get(name string) (interface{}, bool) {
	for _, item := range v {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}

// Has returns true when a variable with the supplied name exists.
func (v Variables) Has(name string) bool {
	_, ok := v.Get(name)
	return ok
}

// Names returns variable names in definition order.
func (v Variables) Names() []string {
	result := make([]string, 0, len(v))
	for _, item := range v {
		result = append(result, item.Name)
	}
	return result
}

// AsMap converts Variables to a map.
func (v Variables) AsMap() map[string]interface{} {
	result := make(map[string]interface{}, len(v))
	for _, item := range v {
		result[item.Name] = item.Value
	}
	return result
}

// Clone returns a shallow copy; variable values are shared.
func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	result := make(Variables, 0, len(v))
	for _, item := range v {
		result = append(result, &Variable{Name: item.Name, Value: item.Value})
	}
	return result
}

// VariablesFromMap creates Variables from a map with names sorted for a
// deterministic order.
func VariablesFromMap(m map[string]interface{}) Variables {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	result := make(Variables, 0, len(m))
	for _, name := range names {
		result = append(result, &Variable{Name: name, Value: m[name]})
	}
	return result
}

// MarshalJSON encodes Variables as a JSON object keeping definition order.
func (v Variables) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, item := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(item.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(item.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode variable %q: %w", item.Name, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (v *Variables) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("invalid variables: expected object, but had: %v", token)
	}
	var result Variables
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}
		name, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("invalid variable name: %v", keyToken)
		}
		var value interface{}
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode variable %q: %w", name, err)
		}
		result.Add(name, value)
	}
	*v = result
	return nil
}

// MarshalYAML encodes Variables as a YAML mapping keeping definition order.
func (v Variables) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, item := range v {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: item.Name}
		value := &yaml.Node{}
		if err := value.Encode(item.Value); err != nil {
			return nil, fmt.Errorf("failed to encode variable %q: %w", item.Name, err)
		}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping keeping key order.
func (v *Variables) UnmarshalYAML(node *yaml.Node) error {
	var result Variables
	err := (*yml.Node)(node).Pairs(func(key string, item *yml.Node) error {
		result.Add(key, item.Interface())
		return nil
	})
	if err != nil {
		return err
	}
	*v = result
	return nil
}
