package chunk

import (
	"context"
)

// Byte-size thresholds for chunk splitting and the line-packing fallback.
const (
	DefaultMaxChunkSize = 1500 // bytes
	DefaultMinChunkSize = 50   // bytes
	fallbackOverlapLines = 2
)

// Kind is the syntactic category of a chunk.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindEnum      Kind = "enum"
	KindTrait     Kind = "trait"
	KindInterface Kind = "interface"
	KindModule    Kind = "module"
	KindImport    Kind = "import"
	KindComment   Kind = "comment"
	KindCode      Kind = "code"
)

// Chunk is a contiguous, byte-exact span of a source file: the unit of
// indexing and retrieval.
type Chunk struct {
	ID        string // first 16 hex chars of SHA256(f"{path}:{start_line}:{end_line}")
	FilePath  string // relative to project root
	Content   string // source[StartByte:EndByte], verbatim
	StartByte int
	EndByte   int
	StartLine int // 1-indexed, inclusive
	EndLine   int // 1-indexed, inclusive
	Kind      Kind
	Symbol    string // optional symbol name, "" if none
	Parent    string // optional parent-symbol name, "" if none
	Language  string // optional language tag, "" if none

	Embedding       []float32   // dense embedding; empty for lexical-only tier
	TokenEmbeddings [][]float32 // optional per-token embeddings for late interaction
}

// FileInput is input for the Chunker interface.
type FileInput struct {
	Path     string // relative path
	Content  []byte // file content
	Language string // go, typescript, python, etc. ("" if unknown)
}

// Chunker splits a file into semantic chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}

// SymbolType is the kind of code symbol a language grammar rule matched,
// prior to being mapped onto the narrower Kind enum a Chunk carries.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeMethod    SymbolType = "method"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
)

// kindForSymbol maps a grammar-level SymbolType onto the Chunk Kind enum.
// Go's type_declaration and TypeScript's type_alias_declaration both surface
// as SymbolTypeType; since the grammars don't distinguish struct/enum/trait
// at this layer, those map to the closest Kind (struct) rather than being
// left unclassified. Constants and variables have no dedicated Kind in the
// data model, so they fall back to KindCode while still keeping their Symbol
// name.
func kindForSymbol(t SymbolType) Kind {
	switch t {
	case SymbolTypeFunction:
		return KindFunction
	case SymbolTypeMethod:
		return KindMethod
	case SymbolTypeClass:
		return KindClass
	case SymbolTypeInterface:
		return KindInterface
	case SymbolTypeType:
		return KindStruct
	default:
		return KindCode
	}
}

// Symbol represents a code symbol extracted from parsing.
type Symbol struct {
	Name       string
	Type       SymbolType
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds configuration for a supported language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string
	ImportTypes    []string
	CommentType    string

	NameField string
}
