package config

import "fmt"

// DeepMerge exposes the loader's deep-merge rules (spec §4.1) for
// reuse by the yaml source, which merges its own document list under
// the same semantics (spec §4.4).
func DeepMerge(a, b interface{}) interface{} {
	return deepMerge(a, b)
}

// deepMerge combines two YAML-decoded trees. Maps merge key by key.
// Lists where every element on both sides is a map carrying a "name"
// key merge element-wise by that name (recursively), preserving the
// order of a's elements followed by any new names from b. Any other
// list is replaced wholesale by b. For scalars, b wins when present.
//
// Grounded in the original Python implementation's _deep_merge.
func deepMerge(a, b interface{}) interface{} {
	if b == nil {
		return a
	}
	if a == nil {
		return b
	}

	am, aIsMap := a.(map[string]interface{})
	bm, bIsMap := b.(map[string]interface{})
	if aIsMap && bIsMap {
		out := make(map[string]interface{}, len(am))
		for k, v := range am {
			out[k] = v
		}
		for k, v := range bm {
			out[k] = deepMerge(out[k], v)
		}
		return out
	}

	al, aIsList := a.([]interface{})
	bl, bIsList := b.([]interface{})
	if aIsList && bIsList {
		if allNamedMaps(al) && allNamedMaps(bl) {
			return mergeNamedList(al, bl)
		}
		return bl
	}

	return b
}

func allNamedMaps(list []interface{}) bool {
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return false
		}
		if _, ok := m["name"]; !ok {
			return false
		}
	}
	return true
}

func mergeNamedList(a, b []interface{}) []interface{} {
	order := make([]string, 0, len(a))
	byName := make(map[string]interface{}, len(a))
	for _, item := range a {
		m := item.(map[string]interface{})
		name := toString(m["name"])
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = m
	}
	for _, item := range b {
		m := item.(map[string]interface{})
		name := toString(m["name"])
		if existing, ok := byName[name]; ok {
			byName[name] = deepMerge(existing, m)
		} else {
			order = append(order, name)
			byName[name] = m
		}
	}
	out := make([]interface{}, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
