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
)

func TestRunSetup(t *testing.T) {
	t.Run("writes credential file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		in := strings.NewReader("my-api-key\nresearcher@example.org\n")
		var out bytes.Buffer

		require.NoError(t, runSetup(in, &out, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var creds map[string]string
		require.NoError(t, json.Unmarshal(data, &creds))
		assert.Equal(t, "my-api-key", creds["api_key"])
		assert.Equal(t, "researcher@example.org", creds["email"])

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("rejects malformed email until corrected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		in := strings.NewReader("\nnot-an-email\nstill bad\nok@example.org\n")
		var out bytes.Buffer

		require.NoError(t, runSetup(in, &out, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var creds map[string]string
		require.NoError(t, json.Unmarshal(data, &creds))
		assert.Empty(t, creds["api_key"])
		assert.Equal(t, "ok@example.org", creds["email"])
		assert.Contains(t, out.String(), "valid email")
	})

	t.Run("empty answers allowed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		in := strings.NewReader("\n\n")
		var out bytes.Buffer

		require.NoError(t, runSetup(in, &out, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `{"api_key": "", "email": ""}`, string(data))
	})
}
