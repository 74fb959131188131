package ecosystem

import (
	"encoding/json"
	"fmt"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// Args holds an app's arguments the way they were written: either a single
// command line string, or an explicit list.
type Args struct {
	// Line is set when the arguments were given as one string
	Line string
	// List is set when the arguments were given as a list
	List []string
}

func ArgsFromLine(line string) Args {
	return Args{Line: line}
}

func ArgsFromList(list ...string) Args {
	return Args{List: list}
}

func (args Args) IsEmpty() bool {
	return args.Line == "" && len(args.List) == 0
}

// Values splits the arguments into an argv slice. A string is split using
// shell quoting rules, but no expansion of any kind happens.
func (args Args) Values() ([]string, error) {
	if args.List != nil {
		out := make([]string, len(args.List))
		copy(out, args.List)
		return out, nil
	}

	if args.Line == "" {
		return nil, nil
	}

	values, err := shlex.Split(args.Line)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgs, err)
	}
	return values, nil
}

func (args Args) String() string {
	if args.List != nil {
		buf, _ := json.Marshal(args.List)
		return string(buf)
	}
	return args.Line
}

func (args *Args) UnmarshalJSON(buf []byte) error {
	var line string
	if err := json.Unmarshal(buf, &line); err == nil {
		*args = Args{Line: line}
		return nil
	}

	var list []string
	if err := json.Unmarshal(buf, &list); err != nil {
		return fmt.Errorf("%w: expected a string or a list of strings, got %s", ErrInvalidArgs, buf)
	}

	*args = Args{List: list}
	return nil
}

func (args Args) MarshalJSON() ([]byte, error) {
	if args.List != nil {
		return json.Marshal(args.List)
	}
	return json.Marshal(args.Line)
}

func (args *Args) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*args = Args{}
			return nil
		}
		*args = Args{Line: node.Value}
		return nil

	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidArgs, err)
		}
		*args = Args{List: list}
		return nil

	default:
		return fmt.Errorf("%w: expected a string or a list of strings (line %d)", ErrInvalidArgs, node.Line)
	}
}

func (args Args) MarshalYAML() (any, error) {
	if args.List != nil {
		return args.List, nil
	}
	return args.Line, nil
}
