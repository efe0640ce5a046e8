package sources

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors names the CSS selectors a novel site uses for chapter pages.
type Selectors struct {
	Title     string `yaml:"title"`
	Body      string `yaml:"body"`
	Paragraph string `yaml:"paragraph"`
	Next      string `yaml:"next"`
}

// DefaultSelectors matches the webplus chapter layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:     "h3.chapter-title",
		Body:      "div.chapter-body",
		Paragraph: "p.pr-line-text",
		Next:      "li.next a",
	}
}

// DefaultNextURLPattern locates the chapter number in a chapter URL.
// The single capture group is the number that gets incremented.
const DefaultNextURLPattern = `/chapter-(\d+)`

// SelectorSource parses chapter pages with configurable CSS selectors.
// When the next-link selector finds nothing, it falls back to
// incrementing the chapter number in the current URL.
type SelectorSource struct {
	sel       Selectors
	chapterRe *regexp.Regexp
	log       *slog.Logger
}

func NewSelectorSource(sel Selectors, nextURLPattern string, log *slog.Logger) (*SelectorSource, error) {
	if sel.Body == "" {
		return nil, fmt.Errorf("body selector cannot be empty")
	}
	if sel.Paragraph == "" {
		sel.Paragraph = "p"
	}
	if log == nil {
		log = slog.Default()
	}

	var chapterRe *regexp.Regexp
	if nextURLPattern != "" {
		re, err := regexp.Compile(nextURLPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid next_url_pattern: %w", err)
		}
		if re.NumSubexp() != 1 {
			return nil, fmt.Errorf("next_url_pattern needs exactly one capture group, got %d", re.NumSubexp())
		}
		chapterRe = re
	}

	return &SelectorSource{sel: sel, chapterRe: chapterRe, log: log}, nil
}

func (s *SelectorSource) ParsePage(html string, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Reason: "unreadable HTML", Err: err}
	}

	title := strings.TrimSpace(doc.Find(s.sel.Title).First().Text())
	if title == "" {
		title = s.fallbackTitle(pageURL)
		s.log.Warn("chapter title not found, using fallback", "url", pageURL, "title", title)
	}

	body := doc.Find(s.sel.Body).First()
	if body.Length() == 0 {
		return nil, &ParseError{URL: pageURL, Reason: "chapter body not found"}
	}

	var paragraphs []string
	body.Find(s.sel.Paragraph).Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	// Zero paragraphs is the no-content signal, not an error: the crawler
	// treats it as the end of the chain.
	return &Page{
		Title:      title,
		Paragraphs: paragraphs,
		NextURL:    s.nextURL(doc, pageURL),
	}, nil
}

// nextURL prefers an explicit next link, then the increment fallback.
func (s *SelectorSource) nextURL(doc *goquery.Document, pageURL string) string {
	if s.sel.Next != "" {
		if href, ok := doc.Find(s.sel.Next).First().Attr("href"); ok {
			if resolved := resolveURL(pageURL, href); resolved != "" {
				return resolved
			}
		}
	}
	next, _ := s.NextAfter(pageURL)
	return next
}

func (s *SelectorSource) NextAfter(currentURL string) (string, bool) {
	if s.chapterRe == nil {
		return "", false
	}
	m := s.chapterRe.FindStringSubmatchIndex(currentURL)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(currentURL[m[2]:m[3]])
	if err != nil {
		return "", false
	}
	return currentURL[:m[2]] + strconv.Itoa(n+1) + currentURL[m[3]:], true
}

func (s *SelectorSource) fallbackTitle(pageURL string) string {
	if s.chapterRe != nil {
		if m := s.chapterRe.FindStringSubmatch(pageURL); m != nil {
			return "Chapter " + m[1]
		}
	}
	return "Untitled Chapter"
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}
