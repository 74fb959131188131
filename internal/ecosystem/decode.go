package ecosystem

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Both the JSON and YAML formats accept either an object with an "apps" list,
// or just the list.

func decodeJSON(buf []byte) ([]App, error) {
	trimmed := bytes.TrimSpace(buf)
	if len(trimmed) == 0 {
		return nil, ErrMissingApps
	}

	if trimmed[0] == '[' {
		var apps []App
		if err := json.Unmarshal(trimmed, &apps); err != nil {
			return nil, err
		}
		return apps, nil
	}

	var doc struct {
		Apps *[]App `json:"apps"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	if doc.Apps == nil {
		return nil, ErrMissingApps
	}

	return *doc.Apps, nil
}

func decodeYAML(buf []byte) ([]App, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(buf))

	var root yaml.Node
	if err := decoder.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingApps
		}
		return nil, err
	}

	if len(root.Content) == 0 {
		return nil, ErrMissingApps
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var apps []App
		if err := node.Decode(&apps); err != nil {
			return nil, err
		}
		return apps, nil

	case yaml.MappingNode:
		var doc struct {
			Apps *[]App `yaml:"apps"`
		}
		if err := node.Decode(&doc); err != nil {
			return nil, err
		}
		if doc.Apps == nil {
			return nil, ErrMissingApps
		}
		return *doc.Apps, nil

	default:
		return nil, fmt.Errorf("expected a mapping or a list at line %d", node.Line)
	}
}
