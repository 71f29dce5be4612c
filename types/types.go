package types

type Status string

const StatusSuccess Status = "success"

// ChunkRecord is one embedded chunk. ChunkID is 1-based and keeps the
// original ordering even after the record is moved into another payload part.
type ChunkRecord struct {
	ChunkID int       `json:"chunk_id"`
	Text    string    `json:"text"`
	Vector  []float64 `json:"vector"`
}

// NewChunkRecord builds a record; a nil vector is stored as an empty one so
// that it serializes as [] rather than null.
func NewChunkRecord(id int, text string, vector []float64) ChunkRecord {
	if vector == nil {
		vector = []float64{}
	}
	return ChunkRecord{
		ChunkID: id,
		Text:    text,
		Vector:  vector,
	}
}

// ResultDocument is the JSON payload delivered to the webhook.
type ResultDocument struct {
	Status       Status        `json:"status"`
	Model        string        `json:"model"`
	OriginalText string        `json:"original_text,omitempty"`
	Chunks       []ChunkRecord `json:"chunks"`
}

// Header returns a copy of the document carrying the same header fields and
// an empty (non-nil) chunk list.
func (d ResultDocument) Header() ResultDocument {
	return d.WithChunks([]ChunkRecord{})
}

// WithChunks returns a copy of the document header with the given chunks.
func (d ResultDocument) WithChunks(chunks []ChunkRecord) ResultDocument {
	return ResultDocument{
		Status:       d.Status,
		Model:        d.Model,
		OriginalText: d.OriginalText,
		Chunks:       chunks,
	}
}
