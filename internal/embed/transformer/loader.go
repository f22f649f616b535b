package transformer

import (
	"os"
	"path/filepath"

	amerr "github.com/RandomsUsernames/sgrep/internal/errors"
)

// LoadFromDir reads config.json, tokenizer.json, and weights.bin from
// modelDir (as cached by embed.ModelManager) and returns the parsed
// triple a StandardEncoder or RotaryEncoder is constructed from.
func LoadFromDir(modelDir string) (Config, *Tokenizer, *Weights, error) {
	cfgData, err := os.ReadFile(filepath.Join(modelDir, "config.json"))
	if err != nil {
		return Config{}, nil, nil, amerr.ModelLoadError("failed to read config.json", err)
	}
	cfg, err := ParseConfig(cfgData)
	if err != nil {
		return Config{}, nil, nil, amerr.ModelLoadError("failed to parse config.json", err)
	}

	tokData, err := os.ReadFile(filepath.Join(modelDir, "tokenizer.json"))
	if err != nil {
		return Config{}, nil, nil, amerr.ModelLoadError("failed to read tokenizer.json", err)
	}
	tokenizer, err := ParseTokenizer(tokData)
	if err != nil {
		return Config{}, nil, nil, amerr.ModelLoadError("failed to parse tokenizer.json", err)
	}

	weightsFile, err := os.Open(filepath.Join(modelDir, "weights.bin"))
	if err != nil {
		return Config{}, nil, nil, amerr.ModelLoadError("failed to open weights.bin", err)
	}
	defer weightsFile.Close()

	weights, err := LoadWeights(weightsFile, cfg)
	if err != nil {
		return Config{}, nil, nil, amerr.ModelLoadError("failed to load weights.bin", err)
	}

	return cfg, tokenizer, weights, nil
}
