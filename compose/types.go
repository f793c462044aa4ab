package compose

// Kind tags a completion item.
type Kind string

const (
	KindKeyword Kind = "keyword"
	KindValue   Kind = "value"
)

// CompletionItem is one suggestion handed back to the editor.
type CompletionItem struct {
	Label         string `json:"label"`
	Kind          Kind   `json:"kind"`
	InsertText    string `json:"insert_text"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
}

// Position is a cursor location. Character counts UTF-16 code units, as in LSP.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}
