package ecosystem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Env holds the variables an app adds to its environment. Numbers and booleans
// are accepted as values and kept as written, so `"PORT": 8080` is "8080".
type Env map[string]string

func (env *Env) UnmarshalJSON(buf []byte) error {
	if bytes.Equal(bytes.TrimSpace(buf), []byte("null")) {
		*env = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf, &raw); err != nil {
		return fmt.Errorf("%w: expected an object, got %s", ErrInvalidEnv, buf)
	}

	out := make(Env, len(raw))
	for key, value := range raw {
		str, err := envValue(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %s", ErrInvalidEnv, key, err)
		}
		out[key] = str
	}

	*env = out
	return nil
}

func envValue(value json.RawMessage) (string, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return "", fmt.Errorf("missing value")
	}

	switch value[0] {
	case '"':
		var str string
		if err := json.Unmarshal(value, &str); err != nil {
			return "", err
		}
		return str, nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil

	case 'n':
		return "", nil

	case '{', '[':
		return "", fmt.Errorf("expected a string, number or boolean, got %s", value)

	default:
		var number json.Number
		if err := json.Unmarshal(value, &number); err != nil {
			return "", err
		}
		return number.String(), nil
	}
}
