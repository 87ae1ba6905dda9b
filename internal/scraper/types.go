package scraper

// Entry is one paper as listed on the proceedings page. PDFURL is empty when
// the container has no link labelled as a PDF.
type Entry struct {
	Title  string
	PDFURL string
	// Index is the position of the container in page order.
	Index int
}

// HasPDF reports whether the entry can be downloaded.
func (e Entry) HasPDF() bool {
	return e.PDFURL != ""
}

type Selectors struct {
	EntrySelector  string   `yaml:"entry_selector"`
	TitleSelectors []string `yaml:"title_selectors"`
	LinkSelector   string   `yaml:"link_selector"`
	PDFLabel       string   `yaml:"pdf_label"`
}

// DefaultSelectors match the ACL Anthology event pages: one
// <p class="d-sm-flex"> per paper, badge links ("pdf", "bib", ...) in the first
// span and the title in <strong> in the second.
func DefaultSelectors() *Selectors {
	return &Selectors{
		EntrySelector:  "p.d-sm-flex",
		TitleSelectors: []string{"span.d-block strong a", "strong a", "strong"},
		LinkSelector:   "a.badge",
		PDFLabel:       "pdf",
	}
}
