package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kerbaras/novelbind/pkg/data"
	"github.com/kerbaras/novelbind/pkg/fetcher"
	"github.com/kerbaras/novelbind/pkg/sources"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pageHTML renders a chapter page in the default selector layout.
func pageHTML(title string, paragraphs []string, nextPath string) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	if title != "" {
		fmt.Fprintf(&b, `<h3 class="chapter-title">%s</h3>`+"\n", title)
	}
	b.WriteString(`<div class="chapter-body">` + "\n")
	for _, p := range paragraphs {
		fmt.Fprintf(&b, `<p class="pr-line-text">%s</p>`+"\n", p)
	}
	b.WriteString("</div>\n")
	if nextPath != "" {
		fmt.Fprintf(&b, `<ul><li class="next"><a href="%s">Next</a></li></ul>`+"\n", nextPath)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// newTestCrawler wires a crawler against an httptest server with all
// waits removed.
func newTestCrawler(t *testing.T, server *httptest.Server, opts CrawlerOptions) (*Crawler, *Checkpoint) {
	t.Helper()

	log := discardLogger()
	f := fetcher.New(fetcher.Options{
		Client:       server.Client(),
		MaxRetries:   2,
		UserAgent:    "test-agent",
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}, log)

	source, err := sources.NewSelectorSource(sources.DefaultSelectors(), sources.DefaultNextURLPattern, log)
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	cp := NewCheckpoint(filepath.Join(t.TempDir(), "checkpoint.json"))
	c := NewCrawler(f, source, cp, opts, log)
	c.sleep = func(time.Duration) {}
	return c, cp
}

func TestCrawlFollowsChainWithCap(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/novel/chapter-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter A", []string{"a1", "a2"}, "/novel/chapter-2"))
	})
	mux.HandleFunc("/novel/chapter-2", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter B", []string{"b1"}, "/novel/chapter-3"))
	})
	mux.HandleFunc("/novel/chapter-3", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter C", []string{"c1"}, ""))
	})

	c, cp := newTestCrawler(t, server, CrawlerOptions{MaxChapters: 2, CheckpointInterval: 1})

	st := &data.CrawlState{StartURL: server.URL + "/novel/chapter-1", CurrentURL: server.URL + "/novel/chapter-1"}
	reason := c.Crawl(context.Background(), st)

	if reason != StopCapReached {
		t.Errorf("Expected cap_reached, got %s", reason)
	}
	if len(st.Chapters) != 2 {
		t.Fatalf("Expected exactly 2 chapters, got %d", len(st.Chapters))
	}
	if st.Chapters[0].Title != "Chapter A" || st.Chapters[1].Title != "Chapter B" {
		t.Errorf("Expected chapters [A, B] in order, got [%s, %s]",
			st.Chapters[0].Title, st.Chapters[1].Title)
	}

	// Checkpoint must reflect the same two entries.
	loaded, err := cp.Load()
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if len(loaded.Chapters) != 2 {
		t.Fatalf("Expected checkpoint with 2 chapters, got %d", len(loaded.Chapters))
	}
	if loaded.Chapters[0].Title != "Chapter A" || loaded.Chapters[1].Title != "Chapter B" {
		t.Error("Checkpoint chapters out of order")
	}
	if loaded.NextURL != server.URL+"/novel/chapter-3" {
		t.Errorf("Expected checkpoint next URL to point at chapter-3, got %s", loaded.NextURL)
	}
}

func TestCrawlStopsOnNoContent(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/novel/chapter-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter A", []string{"a1"}, "/novel/chapter-2"))
	})
	mux.HandleFunc("/novel/chapter-2", func(w http.ResponseWriter, r *http.Request) {
		// body container present, zero paragraphs
		io.WriteString(w, pageHTML("Chapter B", nil, "/novel/chapter-3"))
	})

	c, _ := newTestCrawler(t, server, CrawlerOptions{})

	st := &data.CrawlState{StartURL: server.URL + "/novel/chapter-1", CurrentURL: server.URL + "/novel/chapter-1"}
	reason := c.Crawl(context.Background(), st)

	if reason != StopNoContent {
		t.Errorf("Expected no_content, got %s", reason)
	}
	if len(st.Chapters) != 1 {
		t.Fatalf("Expected the empty page not to be appended, got %d chapters", len(st.Chapters))
	}
	if st.Chapters[0].Title != "Chapter A" {
		t.Error("Previously accumulated chapter lost")
	}
}

func TestCrawlStopsWithoutNextLink(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	// Page layout with no chapter number in the URL, so no increment
	// fallback either.
	mux.HandleFunc("/novel/finale", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Finale", []string{"the end"}, ""))
	})

	c, _ := newTestCrawler(t, server, CrawlerOptions{})

	st := &data.CrawlState{StartURL: server.URL + "/novel/finale", CurrentURL: server.URL + "/novel/finale"}
	reason := c.Crawl(context.Background(), st)

	if reason != StopComplete {
		t.Errorf("Expected complete, got %s", reason)
	}
	if len(st.Chapters) != 1 || st.Chapters[0].Title != "Finale" {
		t.Errorf("Expected the final chapter to be included, got %+v", st.Chapters)
	}
}

func TestCrawlFetchFailureKeepsChapters(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/novel/part-one", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Part One", []string{"text"}, "/novel/gone"))
	})
	// /novel/gone 404s and carries no chapter number to step over with.

	c, cp := newTestCrawler(t, server, CrawlerOptions{})

	st := &data.CrawlState{StartURL: server.URL + "/novel/part-one", CurrentURL: server.URL + "/novel/part-one"}
	reason := c.Crawl(context.Background(), st)

	if reason != StopFetchFailed {
		t.Errorf("Expected fetch_failed, got %s", reason)
	}
	if len(st.Chapters) != 1 {
		t.Fatalf("Expected accumulated chapter to survive, got %d", len(st.Chapters))
	}

	loaded, err := cp.Load()
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if len(loaded.Chapters) != 1 {
		t.Error("Final checkpoint must hold the accumulated chapters")
	}
}

func TestCrawlStepsOverUnparseablePage(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/novel/chapter-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter A", []string{"a1"}, "/novel/chapter-2"))
	})
	mux.HandleFunc("/novel/chapter-2", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body><p>layout changed, no chapter body</p></body></html>")
	})
	mux.HandleFunc("/novel/chapter-3", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter C", []string{"c1"}, ""))
	})

	c, _ := newTestCrawler(t, server, CrawlerOptions{MaxConsecutiveFailures: 2, MaxChapters: 2})

	st := &data.CrawlState{StartURL: server.URL + "/novel/chapter-1", CurrentURL: server.URL + "/novel/chapter-1"}
	reason := c.Crawl(context.Background(), st)

	if reason != StopCapReached {
		t.Errorf("Expected cap_reached, got %s", reason)
	}
	if len(st.Chapters) != 2 {
		t.Fatalf("Expected broken chapter to be skipped, got %d chapters", len(st.Chapters))
	}
	if st.Chapters[0].Title != "Chapter A" || st.Chapters[1].Title != "Chapter C" {
		t.Errorf("Expected [A, C], got [%s, %s]", st.Chapters[0].Title, st.Chapters[1].Title)
	}
	if st.Chapters[1].Index != 2 {
		t.Errorf("Chapter numbering must stay contiguous, got %d", st.Chapters[1].Index)
	}
}

func TestCrawlConsecutiveFailureCap(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/novel/chapter-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter A", []string{"a1"}, "/novel/chapter-2"))
	})
	// chapters 2 and 3 don't exist; the increment fallback would walk
	// forever without the cap

	c, _ := newTestCrawler(t, server, CrawlerOptions{MaxConsecutiveFailures: 2})

	st := &data.CrawlState{StartURL: server.URL + "/novel/chapter-1", CurrentURL: server.URL + "/novel/chapter-1"}
	reason := c.Crawl(context.Background(), st)

	if reason != StopTooManyFailures {
		t.Errorf("Expected too_many_failures, got %s", reason)
	}
	if len(st.Chapters) != 1 {
		t.Errorf("Expected 1 chapter, got %d", len(st.Chapters))
	}
}

func TestCrawlProgressUpdates(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/novel/chapter-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter A", []string{"a1"}, ""))
	})

	c, _ := newTestCrawler(t, server, CrawlerOptions{})

	st := &data.CrawlState{StartURL: server.URL + "/novel/chapter-1", CurrentURL: server.URL + "/novel/chapter-1"}
	c.Crawl(context.Background(), st)
	c.Close()

	var statuses []string
	for p := range c.ProgressChannel() {
		statuses = append(statuses, p.Status)
	}

	if len(statuses) < 3 {
		t.Fatalf("Expected fetching/parsed/stopped updates, got %v", statuses)
	}
	if statuses[0] != "fetching" {
		t.Errorf("Expected first update to be fetching, got %s", statuses[0])
	}
	if statuses[len(statuses)-1] != "stopped" {
		t.Errorf("Expected last update to be stopped, got %s", statuses[len(statuses)-1])
	}
}

func TestCrawlCanceledBetweenIterations(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	mux.HandleFunc("/novel/chapter-1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pageHTML("Chapter A", []string{"a1"}, "/novel/chapter-2"))
	})
	mux.HandleFunc("/novel/chapter-2", func(w http.ResponseWriter, r *http.Request) {
		// Cancel while the second page is in flight; the crawl must
		// still finish this step and stop cleanly afterwards.
		cancel()
		io.WriteString(w, pageHTML("Chapter B", []string{"b1"}, "/novel/chapter-3"))
	})

	c, _ := newTestCrawler(t, server, CrawlerOptions{})

	st := &data.CrawlState{StartURL: server.URL + "/novel/chapter-1", CurrentURL: server.URL + "/novel/chapter-1"}
	reason := c.Crawl(ctx, st)

	if reason != StopCanceled {
		t.Errorf("Expected canceled, got %s", reason)
	}
	if len(st.Chapters) == 0 {
		t.Error("Expected chapters collected before cancellation to survive")
	}
}
