package model

// Match is one similarity-search hit. Score is cosine similarity, higher is closer.
type Match struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Answer pairs the synthesized text with the matches it was produced from.
// Text is nil when synthesis failed.
type Answer struct {
	Text    *string `json:"answer"`
	Matches []Match `json:"matches"`
}
