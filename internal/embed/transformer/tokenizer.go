package transformer

import (
	"encoding/json"
	"strings"
	"unicode"
)

const (
	padToken = "[PAD]"
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
)

// Tokenizer performs WordPiece-style vocabulary lookup: greedy
// longest-match-first subword segmentation over a fixed vocabulary,
// the scheme named in SPEC_FULL.md §5.3.
type Tokenizer struct {
	vocab   map[string]int32
	padID   int32
	unkID   int32
	clsID   int32
	sepID   int32
	maxSub  int
}

type tokenizerFile struct {
	Vocab map[string]int32 `json:"vocab"`
}

// ParseTokenizer decodes a tokenizer.json payload of the form
// {"vocab": {"token": id, ...}}.
func ParseTokenizer(data []byte) (*Tokenizer, error) {
	var file tokenizerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return NewTokenizer(file.Vocab), nil
}

// NewTokenizer builds a Tokenizer over vocab, adding special tokens if
// they are absent.
func NewTokenizer(vocab map[string]int32) *Tokenizer {
	v := make(map[string]int32, len(vocab)+4)
	for k, id := range vocab {
		v[k] = id
	}
	nextID := int32(len(v))
	ensure := func(tok string) int32 {
		if id, ok := v[tok]; ok {
			return id
		}
		id := nextID
		v[tok] = id
		nextID++
		return id
	}

	t := &Tokenizer{vocab: v, maxSub: 16}
	t.padID = ensure(padToken)
	t.unkID = ensure(unkToken)
	t.clsID = ensure(clsToken)
	t.sepID = ensure(sepToken)
	return t
}

// NewDeterministicVocab builds a small synthetic vocabulary of every
// two-character combination of lowercase letters, digits and '_', in
// order, stopping at size entries (at most 37*37), used when no real
// tokenizer.json artifact has been downloaded. Deterministic across
// runs and processes.
func NewDeterministicVocab(size int) map[string]int32 {
	vocab := make(map[string]int32, size)
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789_"
	id := int32(0)
	for _, c1 := range alphabet {
		for _, c2 := range alphabet {
			if int(id) >= size {
				return vocab
			}
			tok := string(c1) + string(c2)
			if _, exists := vocab[tok]; !exists {
				vocab[tok] = id
				id++
			}
		}
	}
	return vocab
}

// Encode tokenizes text into input ids bracketed by [CLS]/[SEP],
// truncated to maxTokens.
func (t *Tokenizer) Encode(text string, maxTokens int) []int32 {
	words := preTokenize(text)

	ids := make([]int32, 0, len(words)+2)
	ids = append(ids, t.clsID)
	for _, w := range words {
		ids = append(ids, t.wordPiece(w)...)
		if len(ids) >= maxTokens-1 {
			break
		}
	}
	if len(ids) > maxTokens-1 {
		ids = ids[:maxTokens-1]
	}
	ids = append(ids, t.sepID)
	return ids
}

// PadID returns the padding token id.
func (t *Tokenizer) PadID() int32 { return t.padID }

// wordPiece greedily segments word into the longest vocabulary
// prefixes it can find, marking continuations with "##" the way
// WordPiece does.
func (t *Tokenizer) wordPiece(word string) []int32 {
	if word == "" {
		return nil
	}
	runes := []rune(word)
	var ids []int32
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				ids = append(ids, id)
				found = true
				break
			}
			end--
		}
		if !found {
			ids = append(ids, t.unkID)
			start++
			continue
		}
		start = end
	}
	return ids
}

// preTokenize splits text on whitespace and punctuation, and further
// splits camelCase/snake_case identifiers, lowercasing everything —
// the same code-aware segmentation the static engine uses.
func preTokenize(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) && r != '_':
			flush()
			words = append(words, string(r))
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			flush()
			current.WriteRune(unicode.ToLower(r))
		default:
			current.WriteRune(unicode.ToLower(r))
		}
	}
	flush()
	return words
}
