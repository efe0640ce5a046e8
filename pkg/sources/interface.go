package sources

import "fmt"

// Page is the parsed form of one chapter page.
type Page struct {
	Title      string
	Paragraphs []string
	// NextURL is empty when the page declares no next chapter.
	NextURL string
}

// Source turns raw chapter HTML into a Page. Implementations are
// site-specific; the crawler only sees this interface.
type Source interface {
	// ParsePage extracts title, body paragraphs and the next-chapter link.
	// A missing title is substituted, not an error. A page whose body
	// container is missing or unreadable yields a *ParseError.
	ParsePage(html string, pageURL string) (*Page, error)

	// NextAfter derives the next chapter URL from the current one without
	// a parsed page, so the crawl can step over a broken chapter. The
	// second return is false when no next URL can be derived.
	NextAfter(currentURL string) (string, bool)
}

// ParseError reports a page whose structure could not be read. The
// crawler skips the chapter and continues when a next URL is derivable.
type ParseError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.URL, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
