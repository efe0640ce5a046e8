package data

// Chapter is one parsed novel page. Immutable once the crawler appends it.
type Chapter struct {
	Index      int      `json:"index"`
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
	URL        string   `json:"url"`
}

// Book is the final artifact handed to the EPUB assembler. Chapters keep
// discovery order; nothing reorders or deduplicates them.
type Book struct {
	ID        string
	Title     string
	Author    string
	Language  string
	SourceURL string
	EPUBPath  string
	Status    string // "crawling", "completed", "partial", "error"
	Chapters  []Chapter
}

// CrawlState is the crawler's working state, persisted as the checkpoint.
// Field order here is the checkpoint's key order, so keep it stable.
type CrawlState struct {
	StartURL   string    `json:"start_url"`
	CurrentURL string    `json:"current_url"`
	NextURL    string    `json:"next_url,omitempty"`
	Attempts   int       `json:"attempts"`
	Chapters   []Chapter `json:"chapters"`
}
