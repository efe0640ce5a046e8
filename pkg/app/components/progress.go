package components

import (
	"fmt"
	"strings"

	"github.com/kerbaras/novelbind/pkg/app/styles"
	"github.com/kerbaras/novelbind/pkg/services"
)

// recentTitles caps how many finished chapters the tracker shows.
const recentTitles = 5

// CrawlTracker accumulates progress updates from a single crawl and
// renders them as a compact status block.
type CrawlTracker struct {
	latest   *services.Progress
	recent   []string
	chapters int
	skipped  int
	maxCap   int
	width    int
}

func NewCrawlTracker(width, maxChapters int) *CrawlTracker {
	return &CrawlTracker{width: width, maxCap: maxChapters}
}

func (t *CrawlTracker) Update(progress services.Progress) {
	prog := progress // copy
	t.latest = &prog
	t.chapters = progress.Chapters

	switch progress.Status {
	case "parsed":
		t.recent = append(t.recent, progress.Title)
		if len(t.recent) > recentTitles {
			t.recent = t.recent[len(t.recent)-recentTitles:]
		}
	case "skipped":
		t.skipped++
	}
}

func (t *CrawlTracker) Chapters() int { return t.chapters }
func (t *CrawlTracker) Skipped() int  { return t.skipped }

func (t *CrawlTracker) Active() bool {
	return t.latest != nil && t.latest.Status != "stopped"
}

func (t *CrawlTracker) View() string {
	if t.latest == nil {
		return styles.MutedStyle.Render("Waiting for first chapter...")
	}

	var b strings.Builder

	count := fmt.Sprintf("%d chapters collected", t.chapters)
	if t.maxCap > 0 {
		count = fmt.Sprintf("%d/%d chapters collected", t.chapters, t.maxCap)
		bar := renderProgressBar(t.chapters, t.maxCap, t.width-4)
		b.WriteString(bar)
		b.WriteString("\n")
	}
	b.WriteString(styles.TextStyle.Render(count))
	if t.skipped > 0 {
		b.WriteString(styles.StatusWarn.Render(fmt.Sprintf("  (%d skipped)", t.skipped)))
	}
	b.WriteString("\n")

	status := t.latest.Status
	line := fmt.Sprintf("[%s] %s", status, t.latest.URL)
	if t.latest.Title != "" {
		line = fmt.Sprintf("[%s] %s", status, t.latest.Title)
	}
	b.WriteString(styles.StatusStyle(status).Render(truncate(line, t.width)))
	b.WriteString("\n")

	if t.latest.Err != nil {
		b.WriteString(styles.StatusError.Render(truncate(fmt.Sprintf("Error: %v", t.latest.Err), t.width)))
		b.WriteString("\n")
	}

	if len(t.recent) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.SubtitleStyle.Render("Recent chapters"))
		b.WriteString("\n")
		for _, title := range t.recent {
			b.WriteString(styles.MutedStyle.Render("  " + truncate(title, t.width-2)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return styles.ProgressBarStyle.Render(bar)
}

func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}
