package codemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
	"github.com/RandomsUsernames/sgrep/internal/store"
)

func TestBuild_CollectsSymbolsAndFileSummaries(t *testing.T) {
	st := store.New()
	st.AddChunk(&chunk.Chunk{
		ID: "c1", FilePath: "a.go", Content: "func Caller() {\n\tCallee()\n}",
		StartLine: 1, EndLine: 3, Kind: chunk.KindFunction, Symbol: "Caller", Language: "go",
	})
	st.AddChunk(&chunk.Chunk{
		ID: "c2", FilePath: "a.go", Content: "func Callee() {}",
		StartLine: 5, EndLine: 5, Kind: chunk.KindFunction, Symbol: "Callee", Language: "go",
	})
	st.AddFile(&store.IndexedFile{Path: "a.go", ChunkIDs: []string{"c1", "c2"}})

	m := Build(st)

	require.Len(t, m.Symbols, 2)
	fs, ok := m.Files["a.go"]
	require.True(t, ok)
	assert.Equal(t, 2, fs.SymbolCount)
	assert.Equal(t, "go", fs.Language)
}

func TestBuild_ForwardBackwardDependencies(t *testing.T) {
	st := store.New()
	st.AddChunk(&chunk.Chunk{
		ID: "c1", FilePath: "a.go", Content: "func Caller() {\n\tCallee()\n}",
		StartLine: 1, EndLine: 3, Kind: chunk.KindFunction, Symbol: "Caller",
	})
	st.AddChunk(&chunk.Chunk{
		ID: "c2", FilePath: "a.go", Content: "func Callee() {}",
		StartLine: 5, EndLine: 5, Kind: chunk.KindFunction, Symbol: "Callee",
	})

	m := Build(st)

	var caller, callee *Symbol
	for _, s := range m.Symbols {
		switch s.Name {
		case "Caller":
			caller = s
		case "Callee":
			callee = s
		}
	}
	require.NotNil(t, caller)
	require.NotNil(t, callee)
	assert.Contains(t, caller.Forward, "Callee")
	assert.Contains(t, callee.Backward, "Caller")
}

func TestBuild_DoesNotMatchSubstringOfLongerIdentifier(t *testing.T) {
	st := store.New()
	st.AddChunk(&chunk.Chunk{
		ID: "c1", FilePath: "a.go", Content: "func Get() {\n\tGetAll()\n}",
		StartLine: 1, EndLine: 3, Kind: chunk.KindFunction, Symbol: "Get",
	})
	st.AddChunk(&chunk.Chunk{
		ID: "c2", FilePath: "a.go", Content: "func GetAll() {}",
		StartLine: 5, EndLine: 5, Kind: chunk.KindFunction, Symbol: "GetAll",
	})

	m := Build(st)
	var get *Symbol
	for _, s := range m.Symbols {
		if s.Name == "Get" {
			get = s
		}
	}
	require.NotNil(t, get)
	assert.Contains(t, get.Forward, "GetAll")
	// "Get" alone never appears as a whole identifier inside GetAll's body,
	// so nothing records a reference back to Get.
	assert.Empty(t, get.Backward)
}

func TestMap_SaveLoadRoundTrip(t *testing.T) {
	st := store.New()
	st.AddChunk(&chunk.Chunk{
		ID: "c1", FilePath: "a.go", Content: "func A() {}",
		StartLine: 1, EndLine: 1, Kind: chunk.KindFunction, Symbol: "A", Language: "go",
	})
	m := Build(st)

	dir := t.TempDir()
	require.NoError(t, m.Save(dir))
	assert.FileExists(t, filepath.Join(dir, "map.json"))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, loaded.Symbols, 1)
	assert.Equal(t, "A", loaded.Symbols[0].Name)
}

func TestMap_FuzzyFind_MatchesDecomposedIdentifier(t *testing.T) {
	st := store.New()
	st.AddChunk(&chunk.Chunk{
		ID: "c1", FilePath: "a.go", Content: "func getUserById() {}",
		StartLine: 1, EndLine: 1, Kind: chunk.KindFunction, Symbol: "getUserById",
	})
	m := Build(st)

	matches := m.FuzzyFind("get user")
	require.Len(t, matches, 1)
	assert.Equal(t, "getUserById", matches[0].Name)

	assert.Empty(t, m.FuzzyFind("delete order"))
}

func TestMap_Overview_ListsSymbolsGroupedByFile(t *testing.T) {
	st := store.New()
	st.AddChunk(&chunk.Chunk{
		ID: "c1", FilePath: "a.go", Content: "func A() {}",
		StartLine: 1, EndLine: 1, Kind: chunk.KindFunction, Symbol: "A", Language: "go",
	})
	m := Build(st)

	overview := m.Overview()
	assert.Contains(t, overview, "a.go (go)")
	assert.Contains(t, overview, "func A() {}")
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "map.json"))
	assert.True(t, os.IsNotExist(statErr))
}
