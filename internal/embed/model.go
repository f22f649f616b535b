// Package embed provides embedding functionality for sgrep.
// This file implements model artifact downloading and content-addressed
// caching for the local transformer encoders.
package embed

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	amerr "github.com/RandomsUsernames/sgrep/internal/errors"
)

const (
	// ModelDownloadTimeout bounds a single artifact download.
	ModelDownloadTimeout = 30 * time.Minute

	// TokenizerFile is the vocabulary/merge-rule artifact name within a
	// model's cache directory.
	TokenizerFile = "tokenizer.json"

	// ConfigFile is the encoder hyperparameter artifact name.
	ConfigFile = "config.json"

	// WeightsFile is the binary weight artifact name.
	WeightsFile = "weights.bin"
)

// ModelManifest names the remote locations of a model's three artifacts.
type ModelManifest struct {
	ID           string
	TokenizerURL string
	ConfigURL    string
	WeightsURL   string
}

// ModelManager downloads and caches model artifacts under
// <modelsDir>/<model-id>/{tokenizer.json,config.json,weights.bin}.
type ModelManager struct {
	modelsDir string
	mu        sync.Mutex
}

// NewModelManager creates a model manager rooted at modelsDir, typically
// "~/.sgrep/models" (see DefaultModelsDir).
func NewModelManager(modelsDir string) *ModelManager {
	return &ModelManager{modelsDir: modelsDir}
}

// ModelDir returns the cache directory for a given model id.
func (m *ModelManager) ModelDir(modelID string) string {
	return filepath.Join(m.modelsDir, modelID)
}

// EnsureModel ensures all three artifacts named in manifest are present on
// disk, downloading any that are missing, and returns the model's cache
// directory. Concurrent callers (including other processes) are serialized
// by a FileLock scoped to the model directory.
func (m *ModelManager) EnsureModel(ctx context.Context, manifest ModelManifest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.ModelDir(manifest.ID)
	if m.artifactsPresent(dir) {
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", amerr.ModelLoadError("failed to create model cache directory", err)
	}

	lock := NewFileLock(dir)
	if err := lock.Lock(); err != nil {
		return "", amerr.ModelLoadError("failed to acquire model download lock", err)
	}
	defer lock.Unlock()

	if m.artifactsPresent(dir) {
		return dir, nil
	}

	artifacts := []struct {
		url, file string
	}{
		{manifest.TokenizerURL, TokenizerFile},
		{manifest.ConfigURL, ConfigFile},
		{manifest.WeightsURL, WeightsFile},
	}
	for _, a := range artifacts {
		if a.url == "" {
			continue
		}
		dest := filepath.Join(dir, a.file)
		err := DownloadWithRetry(ctx, DefaultRetryConfig(), func() error {
			return downloadArtifact(ctx, a.url, dest)
		})
		if err != nil {
			return "", amerr.ModelLoadError("failed to download "+a.file, err)
		}
	}

	if !m.artifactsPresent(dir) {
		return "", amerr.ModelLoadError("model artifacts missing after download", nil)
	}
	return dir, nil
}

func (m *ModelManager) artifactsPresent(dir string) bool {
	for _, f := range []string{TokenizerFile, ConfigFile, WeightsFile} {
		info, err := os.Stat(filepath.Join(dir, f))
		if err != nil || info.Size() == 0 {
			return false
		}
	}
	return true
}

// downloadArtifact fetches url to destPath via an atomic temp-file rename.
func downloadArtifact(ctx context.Context, url, destPath string) error {
	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "sgrep/1.0")

	client := &http.Client{Timeout: ModelDownloadTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return amerr.RemoteError(resp.StatusCode, resp.Status)
	}

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer file.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf := make([]byte, 32*1024)
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	if err := file.Sync(); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

// ModelExists reports whether a model's artifacts are fully cached.
func (m *ModelManager) ModelExists(modelID string) bool {
	return m.artifactsPresent(m.ModelDir(modelID))
}

// DeleteModel removes a cached model's directory entirely.
func (m *ModelManager) DeleteModel(modelID string) error {
	return os.RemoveAll(m.ModelDir(modelID))
}

// DefaultModelsDir returns the default models cache directory.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".sgrep", "models")
}
