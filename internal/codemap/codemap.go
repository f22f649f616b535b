// Package codemap builds a compact symbol-level view of an indexed
// repository for summary consumption, per spec.md §3's CodeMap adjunct:
// symbols with file/line coordinates, signature strings, per-symbol
// forward/backward dependency lists, and per-file summary records. It sits
// off the search hot path, fed entirely by a *store.Store's chunks.
package codemap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
	"github.com/RandomsUsernames/sgrep/internal/store"
)

// Symbol is one named code entity surfaced in the map.
type Symbol struct {
	Name      string   `json:"name"`
	FilePath  string   `json:"file_path"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Kind      string   `json:"kind"`
	Parent    string   `json:"parent,omitempty"`
	Signature string   `json:"signature"`
	Forward   []string `json:"forward,omitempty"`  // symbols this one's body references
	Backward  []string `json:"backward,omitempty"` // symbols that reference this one
}

// FileSummary is a per-file roll-up of the symbols it contributes.
type FileSummary struct {
	Path        string   `json:"path"`
	Language    string   `json:"language"`
	SymbolCount int      `json:"symbol_count"`
	TopSymbols  []string `json:"top_symbols"`
}

// Map is the full symbol-level view of an indexed repository.
type Map struct {
	Symbols []*Symbol               `json:"symbols"`
	Files   map[string]*FileSummary `json:"files"`
}

// maxTopSymbols bounds how many symbol names a FileSummary lists, keeping
// the map compact for summary consumption rather than exhaustive.
const maxTopSymbols = 10

// Build derives a Map from every chunk currently held by st. Chunks without
// a Symbol name (line-packed fallback chunks, standalone imports/comments)
// contribute to their file's summary but not to the symbol table.
func Build(st *store.Store) *Map {
	chunks := st.Chunks()
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].FilePath != chunks[j].FilePath {
			return chunks[i].FilePath < chunks[j].FilePath
		}
		return chunks[i].StartLine < chunks[j].StartLine
	})

	m := &Map{Files: make(map[string]*FileSummary)}
	byName := make(map[string][]*Symbol)

	for _, c := range chunks {
		fs, ok := m.Files[c.FilePath]
		if !ok {
			fs = &FileSummary{Path: c.FilePath, Language: c.Language}
			m.Files[c.FilePath] = fs
		}

		if c.Symbol == "" {
			continue
		}

		sym := &Symbol{
			Name:      c.Symbol,
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Kind:      string(c.Kind),
			Parent:    c.Parent,
			Signature: signatureOf(c),
		}
		m.Symbols = append(m.Symbols, sym)
		byName[sym.Name] = append(byName[sym.Name], sym)

		fs.SymbolCount++
		if len(fs.TopSymbols) < maxTopSymbols {
			fs.TopSymbols = append(fs.TopSymbols, sym.Name)
		}
	}

	computeDependencies(chunks, m.Symbols, byName)
	return m
}

// signatureOf derives a one-line signature from a chunk's content: its
// first non-empty line, trimmed. Good enough for function/method/class
// declarations, which always open with their header on the first line
// after chunking.
func signatureOf(c *chunk.Chunk) string {
	for _, line := range strings.Split(c.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// computeDependencies fills in Forward/Backward for every symbol by a
// name-based lookup: symbol A's body (chunk content) mentioning symbol B's
// name as a whole identifier makes A -> B a forward reference and B -> A a
// backward one. Quadratic in symbol count, acceptable off the search hot
// path for the repository sizes this map targets.
func computeDependencies(chunks []*chunk.Chunk, symbols []*Symbol, byName map[string][]*Symbol) {
	contentByName := make(map[string]string, len(chunks))
	for _, c := range chunks {
		if c.Symbol != "" {
			contentByName[c.Symbol] = c.Content
		}
	}

	for _, sym := range symbols {
		content, ok := contentByName[sym.Name]
		if !ok {
			continue
		}
		seen := make(map[string]bool)
		for name, targets := range byName {
			if name == sym.Name {
				continue
			}
			if !mentionsIdentifier(content, name) {
				continue
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			sym.Forward = append(sym.Forward, name)
			for _, target := range targets {
				target.Backward = append(target.Backward, sym.Name)
			}
		}
		sort.Strings(sym.Forward)
	}
	for _, sym := range symbols {
		sort.Strings(sym.Backward)
	}
}

// mentionsIdentifier reports whether name appears in content as a whole
// identifier (not as a substring of a longer one), approximated by
// requiring non-identifier characters (or string boundaries) on both
// sides.
func mentionsIdentifier(content, name string) bool {
	if name == "" {
		return false
	}
	idx := 0
	for {
		pos := strings.Index(content[idx:], name)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(name)
		beforeOK := start == 0 || !isIdentRune(content[start-1])
		afterOK := end == len(content) || !isIdentRune(content[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(content) {
			return false
		}
	}
}

func isIdentRune(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// Overview renders a compact per-file listing of every symbol's signature,
// grouped and sorted by file path: the minimal-token representation a
// caller can hand an LLM instead of the full file contents.
func (m *Map) Overview() string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	byFile := make(map[string][]*Symbol, len(m.Files))
	for _, sym := range m.Symbols {
		byFile[sym.FilePath] = append(byFile[sym.FilePath], sym)
	}
	for _, syms := range byFile {
		sort.Slice(syms, func(i, j int) bool { return syms[i].StartLine < syms[j].StartLine })
	}

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s (%s)\n", p, m.Files[p].Language)
		for _, sym := range byFile[p] {
			fmt.Fprintf(&b, "  %s %s\n", sym.Kind, sym.Signature)
		}
	}
	return b.String()
}

// FuzzyFind returns every symbol whose name, once split into its
// constituent words (camelCase/snake_case), contains every word in query
// (case-insensitively). Used for interactive symbol lookup, where a user
// types "get user" and expects "getUserById" to match.
func (m *Map) FuzzyFind(query string) []*Symbol {
	queryWords := store.SplitIdentifier(query)
	if len(queryWords) == 0 {
		return nil
	}

	var out []*Symbol
	for _, sym := range m.Symbols {
		symWords := make(map[string]bool)
		for _, w := range store.SplitIdentifier(sym.Name) {
			symWords[w] = true
		}
		matchesAll := true
		for _, qw := range queryWords {
			if !symWords[qw] {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			out = append(out, sym)
		}
	}
	return out
}
