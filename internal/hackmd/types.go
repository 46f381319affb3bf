// Package hackmd defines core types shared across subsystems.
package hackmd

// Page is one team document as reported by the overview endpoint.
// The JSON field names are the snapshot schema and must not change.
type Page struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	LastChangeAt string  `json:"lastchangeAt"`
	Content      *string `json:"content"`
}

// HasContent reports whether the page body was downloaded.
func (p Page) HasContent() bool {
	return p.Content != nil
}

// PageList is an ordered collection of pages. The order is the
// listing response order and is preserved through download and
// persistence.
type PageList []Page

// ByID returns the last page carrying the given id. Duplicate ids
// from upstream are kept as-is, so lookup is last-write-wins.
func (l PageList) ByID(id string) (Page, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].ID == id {
			return l[i], true
		}
	}
	return Page{}, false
}

// Downloaded counts pages with content attached.
func (l PageList) Downloaded() int {
	n := 0
	for _, p := range l {
		if p.HasContent() {
			n++
		}
	}
	return n
}

// Credentials is the secret pair submitted to the login endpoint.
type Credentials struct {
	Email    string
	Password string
}

// RunSummary describes the outcome of one mirror run, published to
// the optional notification topic.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Team       string `json:"team"`
	Pages      int    `json:"pages"`
	Downloaded int    `json:"downloaded"`
	Failed     int    `json:"failed"`
	Snapshot   string `json:"snapshot"`
}
