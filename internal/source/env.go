package source

import (
	"context"
	"os"
	"strings"

	"github.com/Josh5/secretpush/pkg/secretitem"
)

// EnvSource collects the current process environment as a flat mapping,
// grounded in the original's sources/env_vars.py. Filtering (include,
// exclude, keys, strip_prefix) is applied afterward by the collector,
// not here; EnvSource returns every variable it sees.
type EnvSource struct {
	name string
}

// NewEnvSource builds an EnvSource. It takes no options of its own:
// every option the env source accepts is one of the common filter
// fields handled by the collector.
func NewEnvSource(name string) *EnvSource {
	return &EnvSource{name: name}
}

func (s *EnvSource) Name() string { return s.name }

func (s *EnvSource) Collect(ctx context.Context) ([]secretitem.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	environ := os.Environ()
	items := make([]secretitem.Item, 0, len(environ))
	for _, kv := range environ {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			continue
		}
		items = append(items, secretitem.Item{Name: kv[:idx], Value: kv[idx+1:], Source: s.name})
	}
	return items, nil
}
