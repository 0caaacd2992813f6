package models

// Document is a knowledge source loaded from the docs directory
type Document struct {
	Name  string
	Title string
	Text  string
}

// KnowledgeChunk is a slice of a Document as it is stored for retrieval
type KnowledgeChunk struct {
	ID         string
	Text       string
	Source     string
	Title      string
	ChunkIndex int
}

// ChunkEmbedding pairs a chunk with its vector
type ChunkEmbedding struct {
	KnowledgeChunk
	Embedding []float32
}

// RetrievalResult is a chunk returned for a query, ordered by Similarity
type RetrievalResult struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Title      string  `json:"title,omitempty"`
	Similarity float64 `json:"similarity"`
}
