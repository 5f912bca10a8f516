package model

// Chunk is a contiguous piece of a document's extracted text. Start and End
// are rune offsets into that text; Overlap is how many leading runes repeat
// the tail of the previous chunk.
type Chunk struct {
	Content string `json:"content"`
	Index   int    `json:"sequence_index"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Overlap int    `json:"overlap"`
}

// Record is what gets persisted in a vector store collection.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Seq       int       `json:"seq"`
	Source    string    `json:"source"`
	Ctime     int64     `json:"ctime"`
}
