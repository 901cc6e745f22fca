package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sidkik/bak/pkg/errors"
)

// SyncEntry is one entry of the `sync` section: a local pattern and the
// remote patterns it is synced to.
type SyncEntry struct {
	Local   string
	Remotes []string

	// Line is the line of the local pattern in the config file, or 0 if
	// the entry wasn't parsed from a file.
	Line int
}

// SyncMap holds the entries of the `sync` section in the order they appear
// in the file.
type SyncMap []SyncEntry

// UnmarshalYAML accepts a mapping from a local pattern to either a single
// remote pattern or a list of remote patterns.
func (m *SyncMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.ConfigShapeError{Section: "sync", Line: node.Line,
			Reason: "expected a mapping from local paths to remote directories"}
	}

	var entries SyncMap
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return errors.ConfigShapeError{Section: "sync", Line: keyNode.Line,
				Reason: "local paths must be strings"}
		}

		remotes, err := decodeRemotes(valueNode)
		if err != nil {
			return errors.ConfigShapeError{Section: "sync", Key: keyNode.Value,
				Line: keyNode.Line, Reason: err.Error()}
		}

		entries = append(entries, SyncEntry{
			Local:   keyNode.Value,
			Remotes: remotes,
			Line:    keyNode.Line,
		})
	}
	*m = entries
	return nil
}

func decodeRemotes(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if !isString(node) {
			return nil, fmt.Errorf("remote %q is not a string", node.Value)
		}
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return nil, errors.New("remote list is empty")
		}
		var remotes []string
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode || !isString(item) {
				return nil, fmt.Errorf("line %d: remote list items must be strings", item.Line)
			}
			remotes = append(remotes, item.Value)
		}
		return remotes, nil
	default:
		return nil, errors.New("remote must be a string or a list of strings")
	}
}

func isString(node *yaml.Node) bool {
	return node.ShortTag() == "!!str"
}

// MarshalYAML writes single remotes as plain strings so that a parsed config
// round-trips to the same shape.
func (m SyncMap) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range m {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: entry.Local}
		value := &yaml.Node{Kind: yaml.SequenceNode}
		for _, remote := range entry.Remotes {
			value.Content = append(value.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: remote})
		}
		if len(entry.Remotes) == 1 {
			value = value.Content[0]
		}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}
