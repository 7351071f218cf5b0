package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadHostConfig is a function.
func TestLoadHostConfig(t *testing.T) {
	type scenario struct {
		content  string
		expected map[string]string
	}

	scenarios := []scenario{
		{
			"host_name=someone@somewhere\n",
			map[string]string{"host_name": "someone@somewhere"},
		},
		{
			"  host_name =  someone@somewhere  \n",
			map[string]string{"host_name": "someone@somewhere"},
		},
		{
			"# a comment without an equals sign\nhost_name=a@b\nbroken=line=extra\n",
			map[string]string{"host_name": "a@b"},
		},
		{
			"\n\n",
			map[string]string{},
		},
	}

	for _, s := range scenarios {
		path := filepath.Join(t.TempDir(), "sshwrapper.config")
		require.NoError(t, os.WriteFile(path, []byte(s.content), 0o644))

		config := map[string]string{}
		require.NoError(t, LoadHostConfig(path, config))
		assert.EqualValues(t, s.expected, config)
	}
}

func TestLoadHostConfigMissingFile(t *testing.T) {
	config := map[string]string{"host_name": "kept"}
	require.NoError(t, LoadHostConfig(filepath.Join(t.TempDir(), "nope"), config))
	assert.EqualValues(t, map[string]string{"host_name": "kept"}, config)
}
