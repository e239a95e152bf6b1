package template_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Josh5/secretpush/internal/template"
)

func TestRenderVariable(t *testing.T) {
	t.Parallel()

	out, err := template.Render("db://{{ HOST }}:{{ PORT }}", template.Context{
		Vars: map[string]string{"HOST": "localhost", "PORT": "5432"},
	})
	require.NoError(t, err)
	assert.Equal(t, "db://localhost:5432", out)
}

func TestRenderUndefinedVariable(t *testing.T) {
	t.Parallel()

	_, err := template.Render("{{ MISSING }}", template.Context{Vars: map[string]string{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING")
}

func TestRenderFormat(t *testing.T) {
	t.Parallel()

	out, err := template.Render("{{ 'postgres://{}:{}/app'.format(HOST, PORT) }}", template.Context{
		Vars: map[string]string{"HOST": "db.internal", "PORT": "5432"},
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.internal:5432/app", out)
}

func TestRenderLookupFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "token.txt")
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t\n"), 0o600))

	out, err := template.Render("{{ lookup('file', 'token.txt') }}", template.Context{
		Vars:    map[string]string{},
		BaseDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", out)
}

func TestEvalFromJSONDecodesObject(t *testing.T) {
	t.Parallel()

	val, err := template.Eval("RAW | from_json", template.Context{
		Vars: map[string]string{"RAW": `{"a":1}`},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, val)
}

func TestRenderToJSON(t *testing.T) {
	t.Parallel()

	out, err := template.Render("{{ RAW | from_json | to_json }}", template.Context{
		Vars: map[string]string{"RAW": `{"a":1}`},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, out)
}

func TestHasPlaceholder(t *testing.T) {
	t.Parallel()

	assert.True(t, template.HasPlaceholder("{{ X }}"))
	assert.False(t, template.HasPlaceholder("plain string"))
}

func TestRenderUnterminated(t *testing.T) {
	t.Parallel()

	_, err := template.Render("{{ X", template.Context{Vars: map[string]string{"X": "1"}})
	require.Error(t, err)
}

func TestRenderUnknownFilter(t *testing.T) {
	t.Parallel()

	_, err := template.Render("{{ X | upper }}", template.Context{Vars: map[string]string{"X": "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upper")
}
