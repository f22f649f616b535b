package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// =============================================================================
// FindProjectRoot edge cases
// =============================================================================

func TestFindProjectRoot_NonExistentDir_ReturnsInputUnchanged(t *testing.T) {
	nonExistent := filepath.Join(os.TempDir(), "sgrep-nonexistent-path-xyz")

	root := FindProjectRoot(nonExistent)

	assert.Equal(t, nonExistent, root)
}

func TestFindProjectRoot_DeepNesting_FindsGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	deepNested := filepath.Join(tmpDir, "a", "b", "c", "d", "e", "f", "g", "h")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	require.NoError(t, os.MkdirAll(deepNested, 0o755))

	root := FindProjectRoot(deepNested)

	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_StopsAtNearestMarker(t *testing.T) {
	// Given: nested git repos, the inner one should win
	outerDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(outerDir, ".git"), 0o755))
	innerDir := filepath.Join(outerDir, "vendor", "nested-repo")
	require.NoError(t, os.MkdirAll(filepath.Join(innerDir, ".git"), 0o755))

	root := FindProjectRoot(innerDir)

	assert.Equal(t, innerDir, root)
}

// =============================================================================
// Config merge edge cases
// =============================================================================

func TestLoad_ProjectExcludeReplacesDefaults(t *testing.T) {
	// mergeWith overlays a non-empty exclude list wholesale rather than
	// appending — an explicit project config is meant to be authoritative.
	tmpDir := t.TempDir()
	configContent := `
version: 1
paths:
  exclude:
    - "custom_ignore"
`
	err := os.WriteFile(filepath.Join(tmpDir, DefaultProjectConfigFile), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, []string{"custom_ignore"}, cfg.Paths.Exclude)
}

func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	// Given: config with explicit zero values for numeric fields
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  max_results: 0
store:
  ann_threshold: 0
`
	err := os.WriteFile(filepath.Join(tmpDir, DefaultProjectConfigFile), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Search.MaxResults, "zero should not override the default max_results")
	assert.Equal(t, 1000, cfg.Store.ANNThreshold, "zero should not override the default ann_threshold")
}

func TestLoad_NegativeMaxResults_ReturnsValidationError(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  max_results: -10
`
	err := os.WriteFile(filepath.Join(tmpDir, DefaultProjectConfigFile), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "max_results")
}

func TestValidate_NegativeBatchSize_ReturnsError(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.BatchSize = -1

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestValidate_ZeroDimensions_ReturnsError(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.Dimensions = 0

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

// =============================================================================
// Config file permission edge cases
// =============================================================================

func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("test requires non-root user")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, DefaultProjectConfigFile)
	err := os.WriteFile(configPath, []byte("version: 1"), 0o000)
	require.NoError(t, err)
	defer func() { _ = os.Chmod(configPath, 0o644) }()

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read")
}

// =============================================================================
// Config JSON marshaling edge cases
// =============================================================================

func TestConfig_JSON_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Store.ANNThreshold = 2000
	cfg.Embeddings.Provider = ProviderFusion
	cfg.Embeddings.FusionAlpha = 0.6
	cfg.Search.MaxResults = 100

	data, err := jsonMarshal(cfg)
	require.NoError(t, err)

	var parsed Config
	err = jsonUnmarshal(data, &parsed)
	require.NoError(t, err)

	assert.Equal(t, 2000, parsed.Store.ANNThreshold)
	assert.Equal(t, ProviderFusion, parsed.Embeddings.Provider)
	assert.Equal(t, 0.6, parsed.Embeddings.FusionAlpha)
	assert.Equal(t, 100, parsed.Search.MaxResults)
}

func TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError(t *testing.T) {
	invalidJSON := []byte("{invalid json")

	var cfg Config
	err := jsonUnmarshal(invalidJSON, &cfg)

	require.Error(t, err)
}

// =============================================================================
// Empty/whitespace YAML edge cases
// =============================================================================

func TestLoad_EmptyConfigFile_UsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, DefaultProjectConfigFile), []byte(""), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, ProviderStatic, cfg.Embeddings.Provider)
	assert.Equal(t, 20, cfg.Search.MaxResults)
}

func TestLoadYAML_PartialDocument_LeavesRestZeroed(t *testing.T) {
	cfg, err := loadYAML([]byte("version: 2\n"))

	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Version)
	assert.Equal(t, 0, cfg.Search.MaxResults)
}
