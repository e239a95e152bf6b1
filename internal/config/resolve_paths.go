package config

import (
	"path/filepath"
)

// resolveYAMLSourcePaths rewrites the "files"/"file" option of every
// yaml-type source declared directly in this raw document so that
// relative paths are resolved against baseDir (the directory containing
// the document itself) before documents are merged together. Doing
// this per-document, before the merge, is what makes a relative path
// mean "relative to the file that wrote it" even after several config
// files have been deep-merged into one.
func resolveYAMLSourcePaths(doc map[string]interface{}, baseDir string) {
	raw := doc["sources"]
	if raw == nil {
		raw = doc["secrets_sources"]
	}
	list, ok := raw.([]interface{})
	if !ok {
		return
	}
	for _, entry := range list {
		src, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if toString(src["type"]) != "yaml" {
			continue
		}
		opts, ok := src["options"].(map[string]interface{})
		if !ok {
			continue
		}
		files, hasFiles := opts["files"].([]interface{})
		if single, ok := opts["file"].(string); ok && !hasFiles {
			files = []interface{}{single}
			hasFiles = true
		}
		if !hasFiles {
			continue
		}
		resolved := make([]interface{}, 0, len(files))
		for _, f := range files {
			fp, ok := f.(string)
			if !ok || filepath.IsAbs(fp) {
				resolved = append(resolved, f)
				continue
			}
			resolved = append(resolved, filepath.Clean(filepath.Join(baseDir, fp)))
		}
		opts["files"] = resolved
		delete(opts, "file")
	}
}
