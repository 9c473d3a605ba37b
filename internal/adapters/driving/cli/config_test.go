package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand(t *testing.T) {
	t.Run("path prints the default location", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		output, err := executeCommand(t, "config", "path")

		require.NoError(t, err)
		assert.Contains(t, output, filepath.Join(".historia", "config.toml"))
	})

	t.Run("init writes a default config", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		output, err := executeCommand(t, "config", "init")

		require.NoError(t, err)
		assert.Contains(t, output, "Wrote default config")

		data, err := os.ReadFile(filepath.Join(home, ".historia", "config.toml"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "[storage]")
	})

	t.Run("init refuses to overwrite", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		_, err := executeCommand(t, "config", "init")
		require.NoError(t, err)

		_, err = executeCommand(t, "config", "init")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})
}
