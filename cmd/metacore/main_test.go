package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/internal/export"
)

// writeConfig points the blob store and history at a temporary directory.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "metacore.yaml")
	content := "blob:\n  driver: fs\n  root: " + filepath.Join(dir, "blobs") + "\n" +
		"history:\n  driver: sqlite\n  path: " + filepath.Join(dir, "history.db") + "\n" +
		"log:\n  level: warn\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))
	return cfg, dir
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("loads packages through the go command")
	}
}

func TestVersion(t *testing.T) {
	code, out, _ := run(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "metacore dev")
}

func TestMainUsesExitFunc(t *testing.T) {
	orig, args := exitFunc, os.Args
	defer func() { exitFunc, os.Args = orig, args }()
	var got int
	exitFunc = func(code int) { got = code }
	os.Args = []string{"metacore", "no-such-command"}
	main()
	assert.Equal(t, 2, got)
}

func TestConfigErrorsExitTwo(t *testing.T) {
	code, _, stderr := run(t, "validate", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "read config file")

	cfg, _ := writeConfig(t)
	code, _, stderr = run(t, "validate", "-c", cfg, "--log-level", "loud")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "not a valid logrus Level")
}

func TestValidate(t *testing.T) {
	skipShort(t)
	cfg, _ := writeConfig(t)

	code, out, stderr := run(t, "validate", "-c", cfg, "-p", "./testdata/shop", ".")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "2 types, 0 blocking")

	code, out, _ = run(t, "validate", "-c", cfg, "-p", "./testdata/broken", "-f", "json", ".")
	assert.Equal(t, 1, code)
	var report struct {
		Types    int              `json:"types"`
		Blocking bool             `json:"blocking"`
		Failures []export.Failure `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Blocking)
	found := false
	for _, f := range report.Failures {
		if f.Severity == "block" && strings.Contains(f.Message, "HideNmuber") {
			found = true
		}
	}
	assert.True(t, found, out)

	code, _, stderr = run(t, "validate", "-c", cfg, "-f", "xml", ".")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown format")
}

func TestExportAndDiffFiles(t *testing.T) {
	skipShort(t)
	cfg, dir := writeConfig(t)
	shop := filepath.Join(dir, "shop.json")
	broken := filepath.Join(dir, "broken.yaml")

	code, _, stderr := run(t, "export", "-c", cfg, "-p", "./testdata/shop", "-o", shop, ".")
	require.Equal(t, 0, code, stderr)
	code, _, stderr = run(t, "export", "-c", cfg, "-p", "./testdata/broken", "-f", "yaml", "-o", broken, ".")
	require.Equal(t, 0, code, stderr)

	f, err := os.Open(shop)
	require.NoError(t, err)
	snap, err := export.Decode(f)
	f.Close()
	require.NoError(t, err)
	assert.Len(t, snap.Types, 2)

	code, out, _ := run(t, "diff", "-c", cfg, shop, shop)
	assert.Equal(t, 0, code)
	assert.Equal(t, "no changes\n", out)

	code, out, stderr = run(t, "diff", "-c", cfg, shop, broken)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "BREAKING type removed:")
	assert.Contains(t, out, "type added:")
	assert.Contains(t, stderr, "breaking changes found")

	code, _, stderr = run(t, "diff", "-c", cfg, shop, filepath.Join(dir, "nope.json"))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "nope.json")
}

func TestExportPublishAndHistory(t *testing.T) {
	skipShort(t)
	cfg, dir := writeConfig(t)

	code, out, stderr := run(t, "export", "-c", cfg, "-p", "./testdata/shop", "--publish", ".")
	require.Equal(t, 0, code, stderr)
	fields := strings.Fields(out)
	require.Len(t, fields, 3)
	id, key := fields[0], fields[1]
	assert.Equal(t, "snapshots/"+id+".json", key)
	assert.FileExists(t, filepath.Join(dir, "blobs", "snapshots", id+".json"))

	code, out, stderr = run(t, "history", "-c", cfg)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "FINGERPRINT")
	assert.Contains(t, out, id)

	code, out, stderr = run(t, "diff", "-c", cfg, "--history", id, "latest")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "no changes\n", out)

	code, _, _ = run(t, "diff", "-c", cfg, "--history", id, "missing")
	assert.Equal(t, 2, code)
}
