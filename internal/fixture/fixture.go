// Package fixture builds the data-package upload payloads used by the flow
// manager checks from a parameterized JSON template.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Params are substituted into the template wherever "%(name)s" appears
type Params struct {
	Prefix    string
	Owner     string
	OwnerID   string
	DatasetID string
	Revision  string
}

func (p Params) values() map[string]string {
	return map[string]string{
		"prefix":     p.Prefix,
		"owner":      p.Owner,
		"ownerid":    p.OwnerID,
		"dataset_id": p.DatasetID,
		"revision":   p.Revision,
	}
}

var placeholder = regexp.MustCompile(`%%|%\(([a-z_]+)\)s`)

// Render substitutes params into template. "%%" renders as a literal "%".
func Render(template string, params Params) (string, error) {
	values := params.values()

	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		if m == "%%" {
			return "%"
		}
		key := m[2 : len(m)-2]
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		// keep the substituted value a valid JSON string fragment
		quoted, _ := json.Marshal(v)
		return string(quoted[1 : len(quoted)-1])
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("unknown template parameters: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Load reads and renders the template file at path
func Load(path string, params Params) (Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}

	content, err := Parse(string(data), params)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return content, nil
}

// Parse renders template and decodes it into Content
func Parse(template string, params Params) (Content, error) {
	rendered, err := Render(template, params)
	if err != nil {
		return nil, err
	}

	var content Content
	if err := json.Unmarshal([]byte(rendered), &content); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	if content == nil {
		return nil, fmt.Errorf("fixture is not a JSON object")
	}
	return content, nil
}
