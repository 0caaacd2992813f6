package parser

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"finops-agent/internal/models"
)

const (
	DefaultChunkSize    = 500 // characters
	DefaultChunkOverlap = 100 // characters
	DefaultMinChunkLen  = 50
)

// Chunker splits documents into overlapping fixed-size windows
type Chunker struct {
	Size    int
	Overlap int
	MinLen  int
}

// NewChunker falls back to the defaults for non-positive sizes and clamps the overlap below size
func NewChunker(size, overlap, minLen int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	if minLen < 0 {
		minLen = 0
	}
	return Chunker{Size: size, Overlap: overlap, MinLen: minLen}
}

// Chunk splits every document and assigns deterministic chunk IDs
func (c Chunker) Chunk(docs []models.Document) []models.KnowledgeChunk {
	var chunks []models.KnowledgeChunk
	for _, doc := range docs {
		for i, piece := range chunkContent(doc.Text, c.Size, c.Overlap, c.MinLen) {
			chunks = append(chunks, models.KnowledgeChunk{
				ID:         ChunkID(doc.Name, i),
				Text:       piece,
				Source:     doc.Name,
				Title:      doc.Title,
				ChunkIndex: i,
			})
		}
	}
	return chunks
}

// ChunkID derives the storage id from the source name and chunk sequence index
func ChunkID(source string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", source, index)))
	return hex.EncodeToString(sum[:])
}

// chunk content into windows of maxChars characters starting every maxChars-overlapChars characters.
// Each window is trimmed; windows with minChars characters or fewer are dropped.
func chunkContent(content string, maxChars, overlapChars, minChars int) []string {
	if maxChars <= 0 || overlapChars >= maxChars {
		return nil
	}
	runes := []rune(content)
	step := maxChars - overlapChars

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+maxChars, len(runes))
		chunk := strings.TrimSpace(string(runes[start:end]))
		if utf8.RuneCountInString(chunk) > minChars {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
