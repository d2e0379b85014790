package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/realityu/pgnest/pkg/executor"
)

// HasDatabase reports whether any connection setting is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != "" || c.Database.Host != ""
}

// ParseParams builds query parameters from an optional YAML or JSON
// document and key=value pairs. Pairs win over the document. Pair values
// are YAML scalars or flow collections, so "3" is a number and "[1, 2]"
// a list; anything that does not parse stays a string.
func ParseParams(doc string, pairs []string) (executor.Params, error) {
	params := executor.Params{}

	if doc != "" {
		data := []byte(doc)
		if strings.HasPrefix(doc, "@") {
			var err error
			if data, err = os.ReadFile(doc[1:]); err != nil {
				return nil, fmt.Errorf("reading params: %w", err)
			}
		}
		var m map[string]any
		if err := decodeYAML(data, &m); err != nil {
			return nil, fmt.Errorf("parsing params: %w", err)
		}
		for k, v := range m {
			params[k] = v
		}
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("param %q: want key=value", pair)
		}
		var v any
		if err := decodeYAML([]byte(raw), &v); err != nil || v == nil && raw != "null" {
			v = raw
		}
		params[key] = v
	}
	return params, nil
}

// decodeYAML converts YAML to JSON and decodes it keeping integers exact.
func decodeYAML(data []byte, out any) error {
	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return err
	}
	normalize(out)
	return nil
}

// normalize replaces json.Number with int64 or float64 in place.
func normalize(out any) {
	switch p := out.(type) {
	case *any:
		*p = number(*p)
	case *map[string]any:
		for k, v := range *p {
			(*p)[k] = number(v)
		}
	}
}

func number(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = number(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = number(v[k])
		}
		return v
	default:
		return v
	}
}
