package data

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id VARCHAR PRIMARY KEY,
	title VARCHAR NOT NULL,
	author VARCHAR,
	language VARCHAR,
	source_url VARCHAR,
	epub_path VARCHAR,
	status VARCHAR,
	chapter_count INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS chapters (
	book_id VARCHAR NOT NULL,
	idx INTEGER NOT NULL,
	title VARCHAR,
	url VARCHAR,
	body VARCHAR,
	PRIMARY KEY (book_id, idx)
);
`

// paragraphSep joins chapter paragraphs into a single column. Chapter text
// is trimmed before storage, so a bare newline never appears inside one.
const paragraphSep = "\n"

func InitDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// Repository is the local archive of completed crawl runs.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// OpenRepository opens (or creates) the archive database at path.
func OpenRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveBook upserts the book row and replaces its chapters.
func (r *Repository) SaveBook(book *Book) error {
	if book == nil {
		return fmt.Errorf("book cannot be nil")
	}
	if book.ID == "" {
		return fmt.Errorf("book ID cannot be empty")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM books WHERE id = ?`, book.ID); err != nil {
		return fmt.Errorf("failed to replace book: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chapters WHERE book_id = ?`, book.ID); err != nil {
		return fmt.Errorf("failed to replace chapters: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO books (id, title, author, language, source_url, epub_path, status, chapter_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID, book.Title, book.Author, book.Language,
		book.SourceURL, book.EPUBPath, book.Status, len(book.Chapters),
	)
	if err != nil {
		return fmt.Errorf("failed to save book: %w", err)
	}

	for _, ch := range book.Chapters {
		_, err = tx.Exec(
			`INSERT INTO chapters (book_id, idx, title, url, body) VALUES (?, ?, ?, ?, ?)`,
			book.ID, ch.Index, ch.Title, ch.URL, strings.Join(ch.Paragraphs, paragraphSep),
		)
		if err != nil {
			return fmt.Errorf("failed to save chapter %d: %w", ch.Index, err)
		}
	}

	return tx.Commit()
}

// GetBook returns the book row without its chapters, or nil if absent.
func (r *Repository) GetBook(id string) (*Book, error) {
	row := r.db.QueryRow(
		`SELECT id, title, author, language, source_url, epub_path, status
		 FROM books WHERE id = ?`, id)

	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Language, &b.SourceURL, &b.EPUBPath, &b.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetChapters returns a book's chapters in stored (crawl) order.
func (r *Repository) GetChapters(bookID string) ([]Chapter, error) {
	rows, err := r.db.Query(
		`SELECT idx, title, url, body FROM chapters WHERE book_id = ? ORDER BY idx`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []Chapter
	for rows.Next() {
		var ch Chapter
		var body string
		if err := rows.Scan(&ch.Index, &ch.Title, &ch.URL, &body); err != nil {
			return nil, err
		}
		if body != "" {
			ch.Paragraphs = strings.Split(body, paragraphSep)
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// ListBooks returns all archived books, most chapters first.
func (r *Repository) ListBooks() ([]*Book, error) {
	rows, err := r.db.Query(
		`SELECT id, title, author, language, source_url, epub_path, status, chapter_count
		 FROM books ORDER BY chapter_count DESC, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		var count int
		err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Language,
			&b.SourceURL, &b.EPUBPath, &b.Status, &count)
		if err != nil {
			return nil, err
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}

// ChapterCount reports how many chapters a book has in the archive.
func (r *Repository) ChapterCount(bookID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM chapters WHERE book_id = ?`, bookID).Scan(&n)
	return n, err
}

func (r *Repository) DeleteBook(bookID string) error {
	if _, err := r.db.Exec(`DELETE FROM chapters WHERE book_id = ?`, bookID); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM books WHERE id = ?`, bookID)
	return err
}

// UpdateBookStatus updates the status and EPUB path of an archived book.
func (r *Repository) UpdateBookStatus(bookID, status, epubPath string) error {
	_, err := r.db.Exec(
		`UPDATE books SET status = ?, epub_path = ? WHERE id = ?`, status, epubPath, bookID)
	return err
}
