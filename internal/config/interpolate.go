package config

import (
	"fmt"
	"regexp"
)

var varPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// interpolate recursively substitutes "{{ VAR }}" placeholders across a
// raw YAML tree using vars. Unlike internal/template's richer grammar,
// this pass only ever does plain variable substitution: spec.md's
// config-level templating is intentionally simpler than the yaml
// source's per-value engine. Every placeholder must resolve; a missing
// variable is a ConfigError citing both the variable name and origin,
// the path of the config file the placeholder came from (spec §4.1).
func interpolate(obj interface{}, vars map[string]string, origin string) (interface{}, error) {
	switch v := obj.(type) {
	case string:
		var firstErr error
		result := varPattern.ReplaceAllStringFunc(v, func(match string) string {
			if firstErr != nil {
				return match
			}
			name := varPattern.FindStringSubmatch(match)[1]
			val, ok := vars[name]
			if !ok {
				firstErr = fmt.Errorf("missing variable %q for template interpolation in %s", name, origin)
				return match
			}
			return val
		})
		if firstErr != nil {
			return nil, firstErr
		}
		return result, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			resolved, err := interpolate(val, vars, origin)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			resolved, err := interpolate(val, vars, origin)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return obj, nil
	}
}
