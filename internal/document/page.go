package document

// Page is recognized text from one page of a document, as handed over by a
// text producer. Index 0 is the primary page.
type Page struct {
	Index int
	Text  string
}
