// Package models defines core data structures for pages, chunks, and conversations.
package models

// Page is the text extracted from a single page or slide of a source document.
// Number is 1-indexed. Pages with no extractable text produce no Page at all.
type Page struct {
	Text   string `json:"text"`
	Number int    `json:"number"`
}

// Chunk is a bounded substring of extracted text tagged with provenance
// metadata. It is the atomic unit stored in and retrieved from the vector
// store. ID is freshly generated at chunking time, so re-ingesting the same
// file appends new chunks rather than upserting.
type Chunk struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// Turn roles. The generation API distinguishes only the user and the model.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is a single entry of a conversation history. History is owned by the
// caller: the query service reads it and never appends to it.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Hit is a single retrieval result from the vector store.
type Hit struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	Similarity float32 `json:"similarity"`
}
