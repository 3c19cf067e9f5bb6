package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/pkg/metamodel"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, metamodel.ModeLazyUnlessProduction, cfg.Mode())
	assert.Equal(t, "Hide", cfg.Naming.Hide)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metacore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
introspection:
  mode: full
  include: ["example.com/shop.*"]
deployment: production
naming:
  hide: Conceal
blob:
  driver: memory
devmode:
  debounce: 50ms
`), 0o644))
	t.Setenv("METACORE_DEPLOYMENT", "prototyping")
	t.Setenv("METACORE_LOG_LEVEL", "debug")
	t.Setenv("METACORE_EXCLUDE", "example.com/shop.Internal*, **/testdata/**")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, metamodel.ModeFull, cfg.Mode())
	assert.Equal(t, "prototyping", cfg.Deployment, "env overrides the file")
	assert.Equal(t, "Conceal", cfg.Naming.Hide)
	assert.Equal(t, "Disable", cfg.Naming.Disable, "unset prefixes keep defaults")
	assert.Equal(t, "memory", cfg.Blob.Driver)
	assert.Equal(t, 50*time.Millisecond, cfg.DevMode.Debounce)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"example.com/shop.Internal*", "**/testdata/**"}, cfg.Introspection.Exclude)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().HTTP.Addr, cfg.HTTP.Addr)

	_, err = Load("missing.yaml")
	assert.Error(t, err, "an explicitly named file must exist")
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := cfg.Decode(strings.NewReader("introspection:\n  mood: full\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mood")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Introspection.Mode = "sometimes"
	cfg.Deployment = "staging"
	cfg.Log.Format = "xml"
	cfg.Blob.Driver = "s3"
	cfg.Introspection.Include = []string{"[unterminated"}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"sometimes", "staging", "xml", "bucket", "[unterminated"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	env := map[string]string{"METACORE_PUBLISHING": "perhaps", "METACORE_DEVMODE_DEBOUNCE": "soon"}
	err := Default().ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "METACORE_PUBLISHING")
	assert.Contains(t, err.Error(), "METACORE_DEVMODE_DEBOUNCE")
}

func TestSelects(t *testing.T) {
	tests := []struct {
		name    string
		intro   Introspection
		key     string
		selects bool
	}{
		{"no patterns", Introspection{}, "example.com/shop.Customer", true},
		{"included", Introspection{Include: []string{"example.com/shop.*"}}, "example.com/shop.Customer", true},
		{"not included", Introspection{Include: []string{"example.com/shop.*"}}, "example.com/billing.Invoice", false},
		{"excluded wins", Introspection{Include: []string{"**"}, Exclude: []string{"**/internal/**"}}, "example.com/internal/x.T", false},
		{"double star spans packages", Introspection{Include: []string{"example.com/**"}}, "example.com/a/b.T", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.selects, tc.intro.Selects(tc.key))
		})
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))
	cfg := Default()
	cfg.HTTP.Addr = ""
	require.NoError(t, cfg.Decode(&buf))
	assert.Equal(t, Default().HTTP, cfg.HTTP)
	assert.Equal(t, Default().DevMode, cfg.DevMode)
	assert.Equal(t, Default().Naming, cfg.Naming)
}
