package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Josh5/secretpush/internal/collector"
	"github.com/Josh5/secretpush/internal/config"
	"github.com/Josh5/secretpush/pkg/secretitem"
)

func TestRouteAppliesPrefixAndAllSources(t *testing.T) {
	t.Parallel()

	results := []collector.Result{
		{SourceName: "dev", Items: []secretitem.Item{{Name: "FEATURE_FLAG", Value: "true", Source: "dev"}}},
		{SourceName: "extra", Items: []secretitem.Item{{Name: "OTHER_FLAG", Value: "1", Source: "extra"}}},
	}
	sinks := []config.SinkSpec{
		{Name: "ssm", Type: "ssm", Options: map[string]interface{}{"prefix": "/env/dev/"}, Sources: []string{"dev", "extra"}},
	}

	out := Route(sinks, results, nil)
	require.Len(t, out["ssm"], 2)
	assert.Equal(t, "/env/dev/FEATURE_FLAG", out["ssm"][0].FullName)
	assert.Equal(t, "true", out["ssm"][0].Value)
	assert.Equal(t, "dev", out["ssm"][0].SourceName)
}

func TestRouteConflictKeepsFirstSource(t *testing.T) {
	t.Parallel()

	results := []collector.Result{
		{SourceName: "A", Items: []secretitem.Item{{Name: "DB_HOST", Value: "from-a", Source: "A"}}},
		{SourceName: "B", Items: []secretitem.Item{{Name: "DB_HOST", Value: "from-b", Source: "B"}}},
	}
	sinks := []config.SinkSpec{
		{Name: "ssm", Type: "ssm", Options: map[string]interface{}{"prefix": "/p/"}, Sources: []string{"A", "B"}},
	}

	out := Route(sinks, results, nil)
	require.Len(t, out["ssm"], 1)
	assert.Equal(t, "/p/DB_HOST", out["ssm"][0].FullName)
	assert.Equal(t, "from-a", out["ssm"][0].Value)
	assert.Equal(t, "A", out["ssm"][0].SourceName)
}

func TestRouteWildcardSubscribesToEverySource(t *testing.T) {
	t.Parallel()

	results := []collector.Result{
		{SourceName: "A", Items: []secretitem.Item{{Name: "X", Value: "1", Source: "A"}}},
		{SourceName: "B", Items: []secretitem.Item{{Name: "Y", Value: "2", Source: "B"}}},
	}
	sinks := []config.SinkSpec{
		{Name: "all", Type: "ssm"},
	}

	out := Route(sinks, results, nil)
	assert.Len(t, out["all"], 2)
}

func TestRouteUnreferencedSourceIsNotAnError(t *testing.T) {
	t.Parallel()

	results := []collector.Result{
		{SourceName: "unused", Items: []secretitem.Item{{Name: "X", Value: "1", Source: "unused"}}},
	}
	sinks := []config.SinkSpec{
		{Name: "ssm", Type: "ssm", Sources: []string{"other"}},
	}

	out := Route(sinks, results, nil)
	assert.Empty(t, out["ssm"])
}
