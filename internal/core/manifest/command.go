package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Command Normalization
// =============================================================================

// NormalizeCommand converts a raw manifest command value into an argv list.
//
// The string form in a manifest means "run through a shell", so it becomes
// ["sh", "-lc", command] verbatim - splitting it ourselves would break env
// interpolation and quoting the author relied on. The list form is already
// an argv and passes through untouched. Empty values normalize to nil.
func NormalizeCommand(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []string{"sh", "-lc", v}, nil
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		out := make([]string, 0, len(v))
		for i, elem := range v {
			s, err := scalarString(elem)
			if err != nil {
				return nil, NewParseError(
					fmt.Sprintf("command[%d]", i),
					err.Error(),
					ErrInvalidCommand,
				)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, NewParseError("command", fmt.Sprintf("unsupported command type %T", raw), ErrInvalidCommand)
	}
}

// scalarString renders a YAML scalar as a string argv element.
// Manifests routinely write numeric arguments unquoted (e.g. [serve, 8080]).
func scalarString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case int:
		return strconv.Itoa(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		return "", fmt.Errorf("element must be a scalar, got %T", v)
	}
}
