package utils_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/q-controller/imagedrop/src/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHiddenNames(t *testing.T) {
	assert.True(t, utils.IsHidden(".incoming"))
	assert.False(t, utils.IsHidden("a.png"))

	assert.True(t, utils.HasHiddenSegment(".incoming/a.png"))
	assert.True(t, utils.HasHiddenSegment("css/../.env"))
	assert.False(t, utils.HasHiddenSegment("css/site.css"))
}

func TestTouchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	modTime := time.Now().Add(-48 * time.Hour).Truncate(time.Second)

	require.NoError(t, utils.TouchFile(path, modTime))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(modTime))
}

func TestUnmarshalKeepsDefaults(t *testing.T) {
	type section struct {
		Name  string `yaml:"name"`
		Limit int    `yaml:"limit"`
	}
	type config struct {
		Section section `yaml:"section"`
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("section:\n  limit: 5\n"), 0644))

	value := &config{Section: section{Name: "default", Limit: 1}}
	require.NoError(t, utils.Unmarshal(value, path))
	assert.Equal(t, "default", value.Section.Name)
	assert.Equal(t, 5, value.Section.Limit)
}

func TestUnmarshalRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown: true\n"), 0644))

	value := &struct {
		Known bool `yaml:"known"`
	}{}
	assert.Error(t, utils.Unmarshal(value, path))
}

func TestUnmarshalEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	value := &struct {
		Known bool `yaml:"known"`
	}{Known: true}
	require.NoError(t, utils.Unmarshal(value, path))
	assert.True(t, value.Known)
}
