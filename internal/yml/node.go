package yml

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node aliases yaml.Node with ordered traversal helpers. Mapping entries are
// visited in document order, which plain map decoding loses.
type Node yaml.Node

// Resolved unwraps document and alias nodes down to the effective value node.
func (n *Node) Resolved() *Node {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return n
		}
		return (*Node)(n.Content[0]).Resolved()
	case yaml.AliasNode:
		if n.Alias == nil {
			return n
		}
		return (*Node)(n.Alias).Resolved()
	}
	return n
}

// Lookup returns the value node for a mapping key, or nil when absent.
func (n *Node) Lookup(name string) *Node {
	node := n.Resolved()
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == name {
			return (*Node)(node.Content[i+1]).Resolved()
		}
	}
	return nil
}

// Items walks a sequence node in order.
func (n *Node) Items(callback func(index int, node *Node) error) error {
	node := n.Resolved()
	for i := 0; i < len(node.Content); i++ {
		if err := callback(i, (*Node)(node.Content[i]).Resolved()); err != nil {
			return err
		}
	}
	return nil
}

// Pairs walks a mapping node in document order.
func (n *Node) Pairs(callback func(key string, node *Node) error) error {
	node := n.Resolved()
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if err := callback(key, (*Node)(node.Content[i+1]).Resolved()); err != nil {
			return err
		}
	}
	return nil
}

// Interface converts the node subtree into plain Go values. Mapping order is
// not preserved here; use Pairs when order matters.
func (n *Node) Interface() interface{} {
	node := n.Resolved()
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!str":
			return node.Value
		case "!!bool":
			return parseBool(node.Value)
		case "!!null":
			return nil
		case "!!float":
			return parseFloat(node.Value)
		case "!!int":
			return parseInt(node.Value)
		default:
			return node.Value
		}
	case yaml.MappingNode:
		var aMap = make(map[string]interface{})
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			aMap[key] = (*Node)(node.Content[i+1]).Interface()
		}
		return aMap
	case yaml.SequenceNode:
		var aSlice = make([]interface{}, 0, len(node.Content))
		for i := 0; i < len(node.Content); i++ {
			aSlice = append(aSlice, (*Node)(node.Content[i]).Interface())
		}
		return aSlice
	}
	return nil
}

// parseBool converts a value to a boolean.
func parseBool(value string) bool {
	return strings.ToLower(value) == "true"
}

// parseFloat converts a value to a float64.
func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0.0
	}
	return f
}

// parseInt converts a value to an int.
func parseInt(value string) int {
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return i
}
