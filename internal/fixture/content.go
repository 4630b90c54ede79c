package fixture

import "fmt"

// Content is a data-package upload spec. Values are treated as immutable:
// every With* method returns a deep copy and leaves the receiver untouched.
type Content map[string]any

// Clone returns a deep copy of c
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	return cloneValue(map[string]any(c)).(map[string]any)
}

// WithDataset returns a copy whose meta.dataset is name
func (c Content) WithDataset(name string) Content {
	out := c.Clone()
	meta, ok := out["meta"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		out["meta"] = meta
	}
	meta["dataset"] = name
	return out
}

// WithInputKind returns a copy whose first input has the given kind
func (c Content) WithInputKind(kind string) (Content, error) {
	out := c.Clone()
	inputs, ok := out["inputs"].([]any)
	if !ok || len(inputs) == 0 {
		return nil, fmt.Errorf("fixture has no inputs")
	}
	first, ok := inputs[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("fixture input 0 is not an object")
	}
	first["kind"] = kind
	return out, nil
}

// WithSchedule returns a copy with the given schedule expression
func (c Content) WithSchedule(schedule string) Content {
	out := c.Clone()
	out["schedule"] = schedule
	return out
}

// Dataset returns meta.dataset
func (c Content) Dataset() string {
	meta, _ := c["meta"].(map[string]any)
	s, _ := meta["dataset"].(string)
	return s
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case Content:
		return Content(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}
