package source

import (
	"fmt"

	"github.com/Josh5/secretpush/internal/config"
	dserrors "github.com/Josh5/secretpush/internal/errors"
	"github.com/Josh5/secretpush/internal/logging"
	pkgsource "github.com/Josh5/secretpush/pkg/source"
)

// Build constructs the adapter for a declared source spec (spec §9's
// tagged-variant-plus-registry design note). vars is the fully merged
// and interpolated variable map from config load, threaded through to
// the yaml source for its own lookup/template context.
func Build(spec config.SourceSpec, vars map[string]string, logger *logging.Logger) (pkgsource.Source, error) {
	switch spec.Type {
	case "env":
		return NewEnvSource(spec.Name), nil
	case "yaml":
		files := stringSlice(spec.Options["files"])
		if len(files) == 0 {
			return nil, dserrors.ConfigError{Field: "sources[].options.files", Message: fmt.Sprintf("yaml source %q has no files", spec.Name)}
		}
		key := stringOpt(spec.Options["key"])
		return NewYamlSource(spec.Name, files, key, vars), nil
	case "1password":
		return NewOnePasswordSource(spec.Name, spec.Options, logger)
	case "keeper":
		return NewKeeperSource(spec.Name, spec.Options, logger)
	default:
		return nil, dserrors.ConfigError{Field: "sources[].type", Value: spec.Type, Message: fmt.Sprintf("unknown source type %q", spec.Type)}
	}
}
