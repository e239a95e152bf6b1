package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Josh5/secretpush/internal/config"
	"github.com/Josh5/secretpush/internal/template"
	"github.com/Josh5/secretpush/pkg/secretitem"
)

// YamlSource reads one or more YAML documents, merges them with the
// same rules the config loader uses, descends an optional dot-path,
// and normalizes the result into items (spec §4.4).
type YamlSource struct {
	name  string
	files []string
	key   string
	vars  map[string]string
}

// NewYamlSource builds a YamlSource. files must already be resolved to
// absolute paths by the config loader (spec §4.1's declaring-document
// rule); vars is the fully-merged variable map from config load (the
// OS environment overlaid by config vars), used as the variable context
// when templating each file's values.
func NewYamlSource(name string, files []string, key string, vars map[string]string) *YamlSource {
	return &YamlSource{name: name, files: files, key: key, vars: vars}
}

func (s *YamlSource) Name() string { return s.name }

func (s *YamlSource) Collect(ctx context.Context) ([]secretitem.Item, error) {
	var merged interface{}
	for _, path := range s.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("yaml source %q: reading %s: %w", s.name, path, err)
		}
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("yaml source %q: parsing %s: %w", s.name, path, err)
		}

		// Render this file's own string values against its own
		// directory before merging, so a lookup('file', ...) inside it
		// resolves relative to the document that wrote it even after
		// several documents are merged together.
		rendered, err := renderTree(doc, template.Context{Vars: s.vars, BaseDir: filepath.Dir(path)})
		if err != nil {
			return nil, fmt.Errorf("yaml source %q: %s: %w", s.name, path, err)
		}

		merged = config.DeepMerge(merged, rendered)
	}

	target := merged
	if s.key != "" {
		var ok bool
		target, ok = descend(merged, s.key)
		if !ok {
			return nil, fmt.Errorf("yaml source %q: key %q not found", s.name, s.key)
		}
	}

	return normalizeItems(target, s.name)
}

// renderTree walks a generic YAML tree and runs every string leaf
// through the templating engine.
func renderTree(node interface{}, ctx template.Context) (interface{}, error) {
	switch v := node.(type) {
	case string:
		if !template.HasPlaceholder(v) {
			return v, nil
		}
		return template.Render(v, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			rendered, err := renderTree(val, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			rendered, err := renderTree(val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return node, nil
	}
}

// descend walks a dot-path ("a.b.c") into a generic tree.
func descend(node interface{}, path string) (interface{}, bool) {
	cur := node
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// normalizeItems accepts the three shapes spec §4.4 names and produces
// a sequence of Item.
func normalizeItems(node interface{}, sourceName string) ([]secretitem.Item, error) {
	switch v := node.(type) {
	case map[string]interface{}:
		if values, ok := v["values"]; ok {
			if list, ok := values.([]interface{}); ok {
				return itemsFromList(list, sourceName)
			}
			return nil, fmt.Errorf("yaml source %q: 'values' must be a list", sourceName)
		}
		return itemsFromMapping(v, sourceName)
	case []interface{}:
		return itemsFromList(v, sourceName)
	default:
		return nil, fmt.Errorf("yaml source %q: unrecognized document shape", sourceName)
	}
}

func itemsFromMapping(m map[string]interface{}, sourceName string) ([]secretitem.Item, error) {
	items := make([]secretitem.Item, 0, len(m))
	for name, val := range m {
		scalar, ok := val.(string)
		if !ok {
			scalar = fmt.Sprintf("%v", val)
		}
		items = append(items, secretitem.Item{Name: name, Value: scalar, Source: sourceName})
	}
	return items, nil
}

func itemsFromList(list []interface{}, sourceName string) ([]secretitem.Item, error) {
	items := make([]secretitem.Item, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("yaml source %q: list entries must be mappings with name/value", sourceName)
		}
		name, _ := m["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("yaml source %q: list entry missing 'name'", sourceName)
		}
		value := fmt.Sprintf("%v", m["value"])
		desc, _ := m["description"].(string)
		items = append(items, secretitem.Item{Name: name, Value: value, Description: desc, Source: sourceName})
	}
	return items, nil
}
