package codemap

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// mapFileName is the codemap's per-project artifact name, matching
// spec.md §6's ".sgrep/map.json".
const mapFileName = "map.json"

// Save writes m as indented JSON to dir/map.json, creating dir if needed.
func (m *Map) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, mapFileName), data, 0o644)
}

// Load reads a previously saved Map from dir/map.json. The codemap is a
// derived artifact like the ANN index: a missing or corrupt file is never
// fatal, just a cue to rebuild via Build.
func Load(dir string) (*Map, error) {
	data, err := os.ReadFile(filepath.Join(dir, mapFileName))
	if err != nil {
		return nil, err
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Files == nil {
		m.Files = make(map[string]*FileSummary)
	}
	return &m, nil
}
