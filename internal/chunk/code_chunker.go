package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// CodeChunkerOptions configures the byte-size thresholds used when
// splitting oversized chunks and packing the line-based fallback.
type CodeChunkerOptions struct {
	MaxChunkSize int // bytes; default DefaultMaxChunkSize
	MinChunkSize int // bytes; default DefaultMinChunkSize
}

// CodeChunker implements AST-aware chunking via tree-sitter, falling back
// to line-packing when no grammar is available or the syntax pass yields
// nothing.
type CodeChunker struct {
	parser    *Parser
	extractor *SymbolExtractor
	registry  *LanguageRegistry
	options   CodeChunkerOptions
}

// NewCodeChunker creates a new code chunker with default thresholds.
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithOptions(CodeChunkerOptions{})
}

// NewCodeChunkerWithOptions creates a new code chunker with custom thresholds.
func NewCodeChunkerWithOptions(opts CodeChunkerOptions) *CodeChunker {
	if opts.MaxChunkSize == 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.MinChunkSize == 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}

	registry := DefaultRegistry()
	return &CodeChunker{
		parser:    NewParserWithRegistry(registry),
		extractor: NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
		options:   opts,
	}
}

// Close releases chunker resources.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits a file into semantic chunks.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	if _, supported := c.registry.GetByName(file.Language); !supported {
		return c.chunkByLines(file), nil
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		return c.chunkByLines(file), nil
	}

	candidates := c.findSymbolNodes(tree, file.Language)
	candidates = append(candidates, c.findImportNodes(tree, file.Language)...)
	candidates = append(candidates, c.findStandaloneComments(tree, file.Language)...)

	if len(candidates) == 0 {
		return c.chunkByLines(file), nil
	}

	chunks := make([]*Chunk, 0, len(candidates))
	for _, cand := range candidates {
		chunks = append(chunks, c.chunkFromNode(cand, tree, file))
	}

	chunks = dedupByContainment(chunks)

	var split []*Chunk
	for _, ch := range chunks {
		split = append(split, c.splitIfOversized(ch, tree.Source)...)
	}

	sort.Slice(split, func(i, j int) bool { return split[i].StartByte < split[j].StartByte })

	return split, nil
}

// candidateNode pairs a matched AST node with the Kind/symbol-name info
// the grammar rule that matched it implies.
type candidateNode struct {
	node   *Node
	kind   Kind
	symbol string
	parent string
}

// findSymbolNodes walks the tree looking for function/method/class/
// interface/type/const/var declarations.
func (c *CodeChunker) findSymbolNodes(tree *Tree, language string) []candidateNode {
	config, ok := c.registry.GetByName(language)
	if !ok {
		return nil
	}

	symbolTypes := make(map[string]SymbolType)
	for _, t := range config.FunctionTypes {
		symbolTypes[t] = SymbolTypeFunction
	}
	for _, t := range config.MethodTypes {
		symbolTypes[t] = SymbolTypeMethod
	}
	for _, t := range config.ClassTypes {
		symbolTypes[t] = SymbolTypeClass
	}
	for _, t := range config.InterfaceTypes {
		symbolTypes[t] = SymbolTypeInterface
	}
	for _, t := range config.TypeDefTypes {
		symbolTypes[t] = SymbolTypeType
	}
	for _, t := range config.ConstantTypes {
		symbolTypes[t] = SymbolTypeConstant
	}
	for _, t := range config.VariableTypes {
		symbolTypes[t] = SymbolTypeVariable
	}

	var out []candidateNode

	var walk func(n *Node, parent string)
	walk = func(n *Node, parent string) {
		nextParent := parent

		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			if sym := c.extractor.extractSpecialSymbol(n, tree.Source, language); sym != nil {
				out = append(out, candidateNode{node: n, kind: KindFunction, symbol: sym.Name, parent: parent})
			}
		} else if symType, isSymbol := symbolTypes[n.Type]; isSymbol {
			if sym := c.extractSymbol(n, tree, symType, language); sym != nil {
				out = append(out, candidateNode{node: n, kind: kindForSymbol(symType), symbol: sym.Name, parent: parent})
				if isClassLike(n.Type, config) {
					nextParent = sym.Name
				}
			}
		}

		for _, child := range n.Children {
			walk(child, nextParent)
		}
	}
	walk(tree.Root, "")

	return out
}

// isClassLike reports whether a node type is one of the language's
// class-defining node types, used to track the enclosing symbol name for
// nested methods.
func isClassLike(nodeType string, config *LanguageConfig) bool {
	for _, ct := range config.ClassTypes {
		if nodeType == ct {
			return true
		}
	}
	return false
}

// extractSymbol extracts symbol info from a node.
func (c *CodeChunker) extractSymbol(n *Node, tree *Tree, symType SymbolType, language string) *Symbol {
	config, _ := c.registry.GetByName(language)
	name := c.extractor.extractName(n, tree.Source, config, language)
	if name == "" {
		return nil
	}
	return &Symbol{
		Name:      name,
		Type:      symType,
		StartLine: int(n.StartPoint.Row) + 1,
		EndLine:   int(n.EndPoint.Row) + 1,
	}
}

// findImportNodes collects the file's top-level import declarations as
// their own chunks.
func (c *CodeChunker) findImportNodes(tree *Tree, language string) []candidateNode {
	config, ok := c.registry.GetByName(language)
	if !ok || len(config.ImportTypes) == 0 {
		return nil
	}

	importSet := make(map[string]bool, len(config.ImportTypes))
	for _, t := range config.ImportTypes {
		importSet[t] = true
	}

	var out []candidateNode
	for _, child := range tree.Root.Children {
		if importSet[child.Type] {
			out = append(out, candidateNode{node: child, kind: KindImport})
		}
	}
	return out
}

// findStandaloneComments collects top-level comment nodes, doc comments
// included, as their own chunks. A symbol's chunk spans only its
// declaration node, so a doc comment's text is indexed through this chunk.
func (c *CodeChunker) findStandaloneComments(tree *Tree, language string) []candidateNode {
	config, ok := c.registry.GetByName(language)
	if !ok || config.CommentType == "" {
		return nil
	}

	var out []candidateNode
	for _, child := range tree.Root.Children {
		if child.Type != config.CommentType {
			continue
		}
		out = append(out, candidateNode{node: child, kind: KindComment})
	}
	return out
}

func nodeIsSymbolDefining(n *Node, config *LanguageConfig) bool {
	for _, types := range [][]string{config.FunctionTypes, config.MethodTypes, config.ClassTypes, config.InterfaceTypes, config.TypeDefTypes} {
		for _, t := range types {
			if n.Type == t {
				return true
			}
		}
	}
	return false
}

// chunkFromNode builds a Chunk whose byte range is exactly the node's span.
func (c *CodeChunker) chunkFromNode(cand candidateNode, tree *Tree, file *FileInput) *Chunk {
	n := cand.node
	startLine := int(n.StartPoint.Row) + 1
	endLine := int(n.EndPoint.Row) + 1

	return &Chunk{
		ID:        chunkID(file.Path, startLine, endLine),
		FilePath:  file.Path,
		Content:   n.GetContent(tree.Source),
		StartByte: int(n.StartByte),
		EndByte:   int(n.EndByte),
		StartLine: startLine,
		EndLine:   endLine,
		Kind:      cand.kind,
		Symbol:    cand.symbol,
		Parent:    cand.parent,
		Language:  file.Language,
	}
}

// dedupByContainment sorts by descending byte length and greedily keeps a
// chunk iff its byte range is not contained in any already-kept chunk.
func dedupByContainment(chunks []*Chunk) []*Chunk {
	sorted := make([]*Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return (sorted[i].EndByte - sorted[i].StartByte) > (sorted[j].EndByte - sorted[j].StartByte)
	})

	var kept []*Chunk
	for _, cand := range sorted {
		contained := false
		for _, k := range kept {
			if cand.StartByte >= k.StartByte && cand.EndByte <= k.EndByte {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, cand)
		}
	}
	return kept
}

// splitIfOversized splits a chunk exceeding MaxChunkSize along line
// boundaries into sub-chunks of the same kind/symbol/parent, dropping
// sub-chunks below MinChunkSize unless it is the only one.
func (c *CodeChunker) splitIfOversized(ch *Chunk, source []byte) []*Chunk {
	if ch.EndByte-ch.StartByte <= c.options.MaxChunkSize {
		return []*Chunk{ch}
	}

	lines := strings.Split(ch.Content, "\n")
	var parts []*Chunk

	lineStart := 0  // index into lines
	byteStart := ch.StartByte
	curLine := ch.StartLine

	flush := func(endIdx int, endByte int, endLine int) {
		content := strings.Join(lines[lineStart:endIdx], "\n")
		parts = append(parts, &Chunk{
			ID:        chunkID(ch.FilePath, curLine, endLine),
			FilePath:  ch.FilePath,
			Content:   content,
			StartByte: byteStart,
			EndByte:   endByte,
			StartLine: curLine,
			EndLine:   endLine,
			Kind:      ch.Kind,
			Symbol:    ch.Symbol,
			Parent:    ch.Parent,
			Language:  ch.Language,
		})
	}

	accBytes := 0
	segStartIdx := 0
	for i, line := range lines {
		accBytes += len(line) + 1
		if accBytes >= c.options.MaxChunkSize || i == len(lines)-1 {
			endLine := curLine + (i - segStartIdx)
			endByte := byteStart + accBytes - 1
			if endByte > ch.EndByte {
				endByte = ch.EndByte
			}
			flush(i+1, endByte, endLine)
			// Skip the newline that separates this part from the next.
			byteStart = endByte + 1
			curLine = endLine + 1
			segStartIdx = i + 1
			lineStart = i + 1
			accBytes = 0
		}
	}

	if len(parts) <= 1 {
		return parts
	}

	var filtered []*Chunk
	for _, p := range parts {
		if p.EndByte-p.StartByte >= c.options.MinChunkSize {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return []*Chunk{parts[0]}
	}
	return filtered
}

// chunkByLines is the line-packing fallback for unsupported languages or
// files where the syntactic pass produced nothing.
func (c *CodeChunker) chunkByLines(file *FileInput) []*Chunk {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")

	var chunks []*Chunk
	byteOffset := 0
	lineOffsets := make([]int, len(lines)+1)
	for i, l := range lines {
		lineOffsets[i] = byteOffset
		byteOffset += len(l) + 1
	}
	lineOffsets[len(lines)] = byteOffset

	i := 0
	for i < len(lines) {
		acc := 0
		j := i
		for j < len(lines) {
			acc += len(lines[j]) + 1
			j++
			if acc >= c.options.MaxChunkSize {
				break
			}
		}

		startLine := i + 1
		endLine := j
		startByte := lineOffsets[i]
		endByte := lineOffsets[j]
		if endByte > len(content) {
			endByte = len(content)
		}

		chunks = append(chunks, &Chunk{
			ID:        chunkID(file.Path, startLine, endLine),
			FilePath:  file.Path,
			Content:   strings.Join(lines[i:j], "\n"),
			StartByte: startByte,
			EndByte:   endByte,
			StartLine: startLine,
			EndLine:   endLine,
			Kind:      KindCode,
			Language:  file.Language,
		})

		if j >= len(lines) {
			break
		}
		i = j - fallbackOverlapLines
		if i < 0 {
			i = 0
		}
	}

	return chunks
}

// chunkID derives the stable chunk identity: first 16 hex characters of
// SHA256(f"{path}:{start_line}:{end_line}").
func chunkID(path string, startLine, endLine int) string {
	input := fmt.Sprintf("%s:%d:%d", path, startLine, endLine)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
