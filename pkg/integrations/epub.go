package integrations

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"

	"github.com/kerbaras/novelbind/pkg/data"
	"github.com/kerbaras/novelbind/pkg/utils"
)

// AssemblyError reports a failure to produce the output artifact. It is
// the only error class that fails a run; crawl data stays in the
// checkpoint either way.
type AssemblyError struct {
	Path string
	Err  error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("failed to assemble EPUB %s: %v", e.Path, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// EPUBWriter compiles a Book into a single .epub in outputDir.
type EPUBWriter struct {
	outputDir string
}

func NewEPUBWriter(outputDir string) *EPUBWriter {
	if outputDir == "" {
		outputDir = "."
	}
	return &EPUBWriter{outputDir: outputDir}
}

// Write builds the EPUB with one section per chapter, in stored order.
// A book with zero chapters still produces a well-formed (empty) file.
func (w *EPUBWriter) Write(book *data.Book) (string, error) {
	title := book.Title
	if title == "" {
		title = "Web Novel"
	}
	author := book.Author
	if author == "" {
		author = "Unknown"
	}
	lang := book.Language
	if lang == "" {
		lang = "en"
	}

	outputPath := filepath.Join(w.outputDir, utils.SanitizeFilename(title)+".epub")

	e, err := epub.NewEpub(title)
	if err != nil {
		return "", &AssemblyError{Path: outputPath, Err: err}
	}
	e.SetAuthor(author)
	e.SetLang(lang)

	for _, chapter := range book.Chapters {
		sectionTitle := chapter.Title
		if sectionTitle == "" {
			sectionTitle = fmt.Sprintf("Chapter %d", chapter.Index)
		}
		if _, err := e.AddSection(chapterHTML(sectionTitle, chapter.Paragraphs), sectionTitle, "", ""); err != nil {
			return "", &AssemblyError{Path: outputPath, Err: fmt.Errorf("chapter %d: %w", chapter.Index, err)}
		}
	}

	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", &AssemblyError{Path: outputPath, Err: err}
	}
	if err := e.Write(outputPath); err != nil {
		return "", &AssemblyError{Path: outputPath, Err: err}
	}

	return outputPath, nil
}

func chapterHTML(title string, paragraphs []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(title)))
	for _, p := range paragraphs {
		b.WriteString(fmt.Sprintf("<p>%s</p>\n", html.EscapeString(p)))
	}
	return b.String()
}
