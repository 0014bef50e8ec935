package envschema

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
)

// =============================================================================
// Dotenv Parsing
// =============================================================================

// ParseDotenv parses dotenv content into a key/value map. Keys with empty
// values are kept so strict validation can still see them.
func ParseDotenv(content []byte) (map[string]string, error) {
	env, err := gotenv.StrictParse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse dotenv: %w", err)
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out, nil
}

// =============================================================================
// Dotenv Write-back
// =============================================================================

// ApplyDotenvUpdates rewrites dotenv content with the given updates while
// preserving everything else byte for byte:
//
//   - comments, blank lines and unrelated assignments stay where they are
//   - existing KEY=... lines for updated keys are replaced in place
//   - keys not yet present are appended at the end, sorted, after one
//     separating blank line
//   - empty update values are skipped, never written
//
// When content is empty and header is non-empty, the output starts with a
// "# header" comment line. The result always ends with a newline.
func ApplyDotenvUpdates(content []byte, updates map[string]string, header string) []byte {
	var lines []string
	if len(content) > 0 {
		lines = strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	} else if header != "" {
		lines = []string{"# " + header}
	}

	pending := make(map[string]string, len(updates))
	for k, v := range updates {
		if v == "" {
			continue
		}
		pending[k] = v
	}

	out := make([]string, 0, len(lines)+len(pending)+1)
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.Contains(stripped, "=") && !strings.HasPrefix(stripped, "#") {
			key := strings.TrimSpace(strings.SplitN(stripped, "=", 2)[0])
			if v, ok := pending[key]; ok {
				out = append(out, key+"="+v)
				delete(pending, key)
				continue
			}
		}
		out = append(out, line)
	}

	if len(pending) > 0 {
		if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
		keys := make([]string, 0, len(pending))
		for k := range pending {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, k+"="+pending[k])
		}
	}

	return []byte(strings.Join(out, "\n") + "\n")
}
