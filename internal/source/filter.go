// Package source implements secretpush's four source adapters (env,
// yaml, 1password, keeper) behind the pkg/source.Source interface, and
// the registry that builds them from a config.SourceSpec. Adapters
// return their raw item set unfiltered; the common include/exclude/
// keys/strip_prefix post-processing (spec §4.2) is applied once by the
// collector, the same way for every adapter type.
package source

import (
	"regexp"
	"strings"

	"github.com/ryanuber/go-glob"

	"github.com/Josh5/secretpush/pkg/secretitem"
)

// Filter is the common post-processing pipeline every source goes
// through after Collect returns: include narrows, exclude removes,
// keys unions specific names back in regardless of the first two
// stages, and strip_prefix renames what's left.
type Filter struct {
	Include      []string
	IncludeRegex *regexp.Regexp
	ExcludeRegex []*regexp.Regexp
	Keys         map[string]bool
	StripPrefix  string
}

// FilterFromOptions extracts the common filter fields from a source's
// decoded options map. Every adapter type accepts these fields even
// though only some document all of them.
func FilterFromOptions(opts map[string]interface{}) (Filter, error) {
	f := Filter{
		Include:     stringSlice(opts["include"]),
		StripPrefix: stringOpt(opts["strip_prefix"]),
	}
	if re := stringOpt(opts["include_regex"]); re != "" {
		compiled, err := regexp.Compile(re)
		if err != nil {
			return Filter{}, err
		}
		f.IncludeRegex = compiled
	}
	for _, pattern := range stringSlice(opts["exclude"]) {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return Filter{}, err
		}
		f.ExcludeRegex = append(f.ExcludeRegex, compiled)
	}
	if keys := stringSlice(opts["keys"]); len(keys) > 0 {
		f.Keys = make(map[string]bool, len(keys))
		for _, k := range keys {
			f.Keys[k] = true
		}
	}
	return f, nil
}

// passesIncludeExclude runs stages 1-2 of §4.2: include_regex OR
// include (mutually exclusive, include_regex wins if both are set)
// narrows the set, then exclude removes matches from what remains.
func (f Filter) passesIncludeExclude(name string) bool {
	included := true
	if f.IncludeRegex != nil {
		included = f.IncludeRegex.MatchString(name)
	} else if len(f.Include) > 0 {
		included = false
		for _, pattern := range f.Include {
			if glob.Glob(pattern, name) {
				included = true
				break
			}
		}
	}
	if !included {
		return false
	}
	for _, re := range f.ExcludeRegex {
		if re.MatchString(name) {
			return false
		}
	}
	return true
}

// Apply runs the full four-stage pipeline over a source's raw item set
// and returns the surviving items with strip_prefix applied to Name.
func (f Filter) Apply(items []secretitem.Item) []secretitem.Item {
	out := make([]secretitem.Item, 0, len(items))
	for _, item := range items {
		survives := f.passesIncludeExclude(item.Name)
		if !survives && f.Keys != nil && f.Keys[item.Name] {
			// keys unions names back in regardless of include/exclude.
			survives = true
		}
		if !survives {
			continue
		}
		if f.StripPrefix != "" {
			item.Name = strings.TrimPrefix(item.Name, f.StripPrefix)
		}
		out = append(out, item)
	}
	return out
}

func stringSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringOpt(v interface{}) string {
	s, _ := v.(string)
	return s
}
