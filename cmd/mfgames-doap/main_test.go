package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgames/mfgames-doap/pkg/dist"
	"github.com/mfgames/mfgames-doap/pkg/install"
	"github.com/mfgames/mfgames-doap/pkg/logging"
	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "mfgames-doap"), []byte("#!/bin/sh\n"), 0o644))
	return root
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, "-V")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mfgames-doap "+version+"\n"))
	assert.Contains(t, out, "Built: ")
}

func TestInfoFormats(t *testing.T) {
	out, err := run(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Name:        mfgames-doap\n")
	assert.Contains(t, out, "  - src/mfgames-doap\n")

	out, err = run(t, "info", "--format", "json")
	require.NoError(t, err)
	var md manifest.Metadata
	require.NoError(t, json.Unmarshal([]byte(out), &md))
	assert.Equal(t, manifest.Default(), &md)

	out, err = run(t, "info", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "author: D. Moonfire\n")

	_, err = run(t, "info", "--format", "xml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	root := writeProject(t)

	out, err := run(t, "validate", "--root", root)
	require.NoError(t, err)
	assert.Equal(t, "✓ mfgames-doap 0.0.0 is valid\n", out)

	_, err = run(t, "validate", "--root", t.TempDir())
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)

	manifestPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte("name: x\nversion: one\n"), 0o644))
	_, err = run(t, "validate", "--root", root, "--manifest", manifestPath)
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
}

func TestFormatsFlag(t *testing.T) {
	v := newFormatsValue("gzip")
	assert.Equal(t, "gzip", v.String())
	assert.Equal(t, "formats", v.Type())

	require.NoError(t, v.Set("gztar,xztar, zstd,tgz"))
	assert.Equal(t, "gzip,xz,zstd", v.String())

	assert.Error(t, v.Set("zip"))
}

func TestSdistVerifyInstallLifecycle(t *testing.T) {
	root := writeProject(t)
	distDir := filepath.Join(t.TempDir(), "dist")
	prefixDir := filepath.Join(t.TempDir(), "prefix")
	t.Setenv(dist.EnvSourceDateEpoch, "1365000000")

	out, err := run(t, "sdist", "--root", root, "--dist-dir", distDir, "--formats", "gztar,bztar", "--checksum", "sha512")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "sha512:"))

	archive := filepath.Join(distDir, "mfgames-doap-0.0.0.tar.gz")
	assert.FileExists(t, archive)
	assert.FileExists(t, filepath.Join(distDir, "mfgames-doap-0.0.0.tar.bz2"))

	out, err = run(t, "verify", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ mfgames-doap 0.0.0\n")
	assert.Contains(t, out, "checksum: sha512:")

	out, err = run(t, "install", "--archive", archive, "--prefix", prefixDir)
	require.NoError(t, err)
	installed := filepath.Join(prefixDir, "bin", "mfgames-doap")
	assert.Equal(t, installed+"\n", out)

	out, err = run(t, "status", "--prefix", prefixDir)
	require.NoError(t, err)
	assert.Contains(t, out, "mfgames-doap 0.0.0 (current)\n")

	out, err = run(t, "uninstall", "mfgames-doap", "--prefix", prefixDir)
	require.NoError(t, err)
	assert.Equal(t, "removed "+installed+"\n", out)

	_, err = run(t, "status", "--prefix", prefixDir)
	assert.Error(t, err)
}

func TestInstallFromRoot(t *testing.T) {
	root := writeProject(t)
	prefixDir := t.TempDir()

	_, err := run(t, "install", "--root", root, "--prefix", prefixDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(prefixDir, "bin", "mfgames-doap"))

	_, err = run(t, "install", "--archive", "x.tar.gz", "--manifest", "m.json")
	assert.Error(t, err)
}

func TestVerifyRejectsMissingArchive(t *testing.T) {
	_, err := run(t, "verify", filepath.Join(t.TempDir(), "missing.tar.gz"))
	assert.ErrorIs(t, err, dist.ErrVerificationFailed)

	_, err = run(t, "verify")
	assert.Error(t, err)
}

func TestLogFileClosedWhenCommandFails(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "doap.log")
	t.Setenv(logging.EnvLogPath, logPath)

	a := newApp()
	err := a.execute(context.Background(), []string{"validate", "--root", t.TempDir(), "--log-level", "info"})
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
	assert.Nil(t, a.closeLog, "log output should be released after a failed command")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "validating manifest")
}

func TestBuildStamp(t *testing.T) {
	revision, built := buildStamp()
	_, err := time.Parse(time.RFC3339, built)
	assert.NoError(t, err)
	assert.LessOrEqual(t, len(revision), 12)
}

func TestUninstallRejectsUnsafeName(t *testing.T) {
	_, err := run(t, "uninstall", "../..", "--prefix", t.TempDir())
	assert.ErrorIs(t, err, install.ErrInvalidName)
}
