package models

// Document is one uploaded file. It is consumed during index construction
// and not retained afterwards.
type Document struct {
	Filename string
	Data     []byte
}

// TextSegment is a unit of text extracted from a document. Page is 1-based;
// 0 means the page is unknown.
type TextSegment struct {
	Content    string
	SourceFile string
	Page       int
}

// ContentChunk is the retrieval unit: a bounded slice of segment text with
// its source metadata. Chunks are immutable once inserted into an index.
type ContentChunk struct {
	ChunkID    string `json:"chunk_id"`
	Text       string `json:"text"`
	Order      int    `json:"order"`
	SourceFile string `json:"source_file,omitempty"`
	Page       int    `json:"page,omitempty"`
	CharCount  int    `json:"char_count,omitempty"`
}

// ProcessResponse is returned after a successful document processing call.
type ProcessResponse struct {
	Message   string   `json:"message"`
	Filenames []string `json:"filenames"`
}
