package models

// Figure is an image found in retrieved content.
type Figure struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// ExtractedContent is the cleaned content of one TOC node page. Built per retrieval call,
// never persisted by the core.
type ExtractedContent struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	Markdown    string   `json:"markdown,omitempty"`
	Headings    []string `json:"headings"`
	Paragraphs  []string `json:"paragraphs"`
	Figures     []Figure `json:"figures"`
	SectionPath []string `json:"section_path"`
	SourceTitle string   `json:"source_title"`
	NodeID      string   `json:"node_id,omitempty"`
	SortOrder   int      `json:"sort_order"`
}

// Citation attributes generated content to a source section.
type Citation struct {
	SourceTitle  string   `json:"source_title"`
	SectionTitle string   `json:"section_title"`
	SectionPath  []string `json:"section_path"`
	URL          string   `json:"url"`
	SortOrder    int      `json:"sort_order"`
}
