package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_AppliesConfigurationAndServesCommands(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	doc := `
services {
  onLoad = "boot"

  service "api" {
    type = "print"
    settings {
      setting "port" { val = "8080" }
    }
  }
}

actions {
  action "boot" {
    service {
      method      = "start"
      serviceName = "api"
    }
  }
}
`
	dir := t.TempDir()
	filePath := filepath.Join(dir, "server.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(doc), 0o600))

	args := []string{"-working-dir", dir, "-log-level", "error", "-commands", filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, strings.NewReader("execConfiguration\n"), args)

	// --- Assert ---
	require.NoError(t, err)
	got := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, got, 3, out.String())
	require.Equal(t, `start api port="8080"`, got[0])
	require.True(t, strings.HasPrefix(got[1], "error: "), "re-applying creates the services again, which the registry rejects: %s", got[1])
	require.Equal(t, "stop api", got[2])
}

func TestRun_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	filePath := filepath.Join(dir, "config.xml")
	require.NoError(t, os.WriteFile(filePath, []byte("<server><services>"), 0o600))
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, strings.NewReader(""), []string{"-working-dir", dir, "-log-level", "error"})

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), filePath)
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, nil, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, nil, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}
