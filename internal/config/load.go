package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	dserrors "github.com/Josh5/secretpush/internal/errors"
)

// Load reads, merges, interpolates and validates one or more config
// files into a single Definition. Files are merged in the order given;
// later files' scalars and named-list entries override earlier ones.
func Load(paths []string) (*Definition, error) {
	if len(paths) == 0 {
		return nil, dserrors.ConfigError{Message: "at least one config file must be provided"}
	}

	// vars accumulate across documents in file order (later files' vars
	// override earlier ones), the same precedence the merge below gives
	// every other key, and are fully known before any document's own
	// placeholders are resolved against them.
	varsMap := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				varsMap[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	type loadedDoc struct {
		path string
		doc  map[string]interface{}
	}
	docs := make([]loadedDoc, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, dserrors.ConfigError{Field: p, Message: "cannot read config file", Suggestion: "check the path passed to --file"}
		}
		var doc map[string]interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, dserrors.ConfigError{Field: p, Message: "invalid YAML: " + err.Error()}
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}

		absDir, err := filepath.Abs(filepath.Dir(p))
		if err != nil {
			absDir = filepath.Dir(p)
		}
		resolveYAMLSourcePaths(doc, absDir)

		if rawVars, ok := doc["vars"]; ok {
			cfgVars, ok := rawVars.(map[string]interface{})
			if !ok {
				return nil, dserrors.ConfigError{Field: p, Message: "'vars' must be a mapping of key: value"}
			}
			for k, v := range cfgVars {
				varsMap[k] = toString(v)
			}
		}

		docs = append(docs, loadedDoc{path: p, doc: doc})
	}

	// Each document is interpolated against the full vars set before
	// merging, so a resolution failure can still cite the file it came
	// from (spec §4.1) instead of only the merged, origin-less tree.
	var merged map[string]interface{}
	for _, d := range docs {
		interpolated, err := interpolate(d.doc, varsMap, d.path)
		if err != nil {
			return nil, dserrors.ConfigError{Field: d.path, Message: err.Error()}
		}
		doc := interpolated.(map[string]interface{})

		if merged == nil {
			merged = doc
		} else {
			merged = deepMerge(merged, doc).(map[string]interface{})
		}
	}
	mergedTree := merged

	def := &Definition{Vars: varsMap}

	def.AWS = buildAWSOptions(mergedTree)

	rawSources := coerceList(firstNonNil(mergedTree["sources"], mergedTree["secrets_sources"]))
	seen := map[string]bool{}
	for i, raw := range rawSources {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		typ := canonicalSourceType(toString(m["type"]))
		name := toString(m["name"])
		if name == "" {
			name = typ
		}
		if seen[name] {
			return nil, dserrors.ConfigError{Field: fmt.Sprintf("sources[%d].name", i), Value: name, Message: "duplicate source name"}
		}
		seen[name] = true

		options, _ := m["options"].(map[string]interface{})
		if err := validateOptions("source", typ, options); err != nil {
			return nil, err
		}
		def.Sources = append(def.Sources, SourceSpec{Name: name, Type: typ, Options: options})
	}

	validSourceNames := map[string]bool{}
	for _, s := range def.Sources {
		validSourceNames[s.Name] = true
	}

	rawSinks := coerceList(mergedTree["sinks"])
	seenSinks := map[string]bool{}
	for i, raw := range rawSinks {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		typ := canonicalSinkType(toString(m["type"]))
		name := toString(m["name"])
		if name == "" {
			name = typ
		}
		if seenSinks[name] {
			return nil, dserrors.ConfigError{Field: fmt.Sprintf("sinks[%d].name", i), Value: name, Message: "duplicate sink name"}
		}
		seenSinks[name] = true

		options, _ := m["options"].(map[string]interface{})
		if err := validateOptions("sink", typ, options); err != nil {
			return nil, err
		}

		var sources []string
		for _, s := range coerceList(m["sources"]) {
			sources = append(sources, toString(s))
		}
		sink := SinkSpec{Name: name, Type: typ, Options: options, Sources: sources}
		if !sink.AllSources() {
			for _, ref := range sources {
				if !validSourceNames[ref] {
					return nil, dserrors.ConfigError{
						Field:   fmt.Sprintf("sinks[%d].sources", i),
						Value:   ref,
						Message: fmt.Sprintf("sink %q references unknown source %q", name, ref),
					}
				}
			}
		}
		def.Sinks = append(def.Sinks, sink)
	}

	return def, nil
}

func buildAWSOptions(tree map[string]interface{}) AWSOptions {
	aws := AWSOptions{}
	if raw, ok := tree["aws"].(map[string]interface{}); ok {
		aws.Region = toString(raw["region"])
		aws.Profile = toString(raw["profile"])
		aws.AssumeRole = toString(raw["assume_role"])
	}
	if aws.Region == "" {
		aws.Region = firstNonEmpty(os.Getenv("AWS_DEFAULT_REGION"), os.Getenv("AWS_REGION"))
	}
	if aws.Profile == "" {
		aws.Profile = os.Getenv("AWS_PROFILE")
	}
	return aws
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(vals ...interface{}) interface{} {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func coerceList(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}
