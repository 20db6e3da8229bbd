package helm

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

// Values represents helm chart values as a map.
type Values map[string]any

// Merge combines multiple Values maps with later maps taking precedence.
func Merge(valueMaps ...Values) Values {
	result := make(Values)
	for _, m := range valueMaps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// deepMerge returns base overlaid with override. Nested maps are merged
// key by key; any other override value replaces the base value.
func deepMerge(base, override Values) Values {
	result := make(Values, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if ov, ok := asValues(v); ok {
			if bv, ok := asValues(result[k]); ok {
				result[k] = deepMerge(bv, ov)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func asValues(v any) (Values, bool) {
	switch m := v.(type) {
	case Values:
		return m, true
	case map[string]any:
		return Values(m), true
	default:
		return nil, false
	}
}

// ToMap converts v and every nested Values into plain maps, the only map
// type the Helm engine understands.
func (v Values) ToMap() map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = toPlain(val)
	}
	return out
}

func toPlain(v any) any {
	switch t := v.(type) {
	case Values:
		return t.ToMap()
	case map[string]any:
		return Values(t).ToMap()
	case []Values:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e.ToMap()
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toPlain(e)
		}
		return out
	default:
		return v
	}
}

// ToYAML converts values to YAML bytes. Map keys are emitted in sorted
// order, so equal values always encode identically.
func (v Values) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(v.ToMap()); err != nil {
		return nil, fmt.Errorf("failed to encode values to YAML: %w", err)
	}

	return buf.Bytes(), nil
}

// FromYAML parses YAML bytes into Values.
func FromYAML(data []byte) (Values, error) {
	var values Values
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse YAML values: %w", err)
	}
	return values, nil
}

// Documents encodes each object as YAML and joins them into one
// multi-document manifest.
func Documents(objects ...Values) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objects {
		data, err := sigsyaml.Marshal(obj.ToMap())
		if err != nil {
			return nil, fmt.Errorf("failed to encode document %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
