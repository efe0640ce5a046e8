package services

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kerbaras/novelbind/pkg/data"
	"github.com/kerbaras/novelbind/pkg/fetcher"
	"github.com/kerbaras/novelbind/pkg/sources"
)

// crawlState is the loop's position in the Fetching -> Parsing ->
// (Advancing | Stopping) machine. One URL is in flight at a time.
type crawlState int

const (
	stateFetching crawlState = iota
	stateParsing
	stateAdvancing
	stateStopping
)

// StopReason says why a crawl ended. Every reason is a controlled
// handoff: the accumulated chapters survive regardless.
type StopReason string

const (
	StopComplete        StopReason = "complete"          // no next chapter link
	StopNoContent       StopReason = "no_content"        // page had zero paragraphs
	StopFetchFailed     StopReason = "fetch_failed"      // retries exhausted, no way forward
	StopParseFailed     StopReason = "parse_failed"      // unparseable page, no way forward
	StopCapReached      StopReason = "cap_reached"       // max_chapters hit
	StopTooManyFailures StopReason = "too_many_failures" // consecutive-failure cap hit
	StopCanceled        StopReason = "canceled"          // interrupt between iterations
)

// Progress reports crawl activity for the CLI printer and the TUI.
type Progress struct {
	Seq      int    // 1-based position of the page being worked on
	URL      string
	Title    string
	Status   string // "fetching", "parsed", "skipped", "stopped"
	Chapters int    // chapters accumulated so far
	Err      error
}

// CrawlerOptions is the explicit configuration the design notes call for.
type CrawlerOptions struct {
	MaxChapters            int // 0 means unlimited
	CheckpointInterval     int
	DelayMin               time.Duration
	DelayMax               time.Duration
	MaxConsecutiveFailures int
}

// Crawler drives fetch -> parse -> advance over one URL at a time,
// strictly sequentially. Politeness takes precedence over throughput.
type Crawler struct {
	fetcher    *fetcher.Fetcher
	source     sources.Source
	checkpoint *Checkpoint
	opts       CrawlerOptions
	log        *slog.Logger

	progressChan chan Progress
	closeOnce    sync.Once
	sleep        func(time.Duration)
}

func NewCrawler(f *fetcher.Fetcher, source sources.Source, checkpoint *Checkpoint, opts CrawlerOptions, log *slog.Logger) *Crawler {
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = 5
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 2
	}
	if opts.DelayMax < opts.DelayMin {
		opts.DelayMax = opts.DelayMin
	}
	if log == nil {
		log = slog.Default()
	}
	return &Crawler{
		fetcher:      f,
		source:       source,
		checkpoint:   checkpoint,
		opts:         opts,
		log:          log,
		progressChan: make(chan Progress, 64),
		sleep:        time.Sleep,
	}
}

// ProgressChannel returns the channel progress updates are sent on.
func (c *Crawler) ProgressChannel() <-chan Progress {
	return c.progressChan
}

// Close releases the progress channel once no more crawls will run.
// Safe to call more than once.
func (c *Crawler) Close() {
	c.closeOnce.Do(func() { close(c.progressChan) })
}

// Crawl follows next-chapter links from st.CurrentURL, mutating st as it
// goes. Fetch and parse failures are handled here and never escape; the
// returned reason says how the run ended. The final state is always
// checkpointed before returning, so partial progress is never lost.
func (c *Crawler) Crawl(ctx context.Context, st *data.CrawlState) StopReason {
	state := stateFetching
	reason := StopComplete
	consecutiveFailures := 0
	sinceCheckpoint := 0

	var html string
	var page *sources.Page

	for state != stateStopping {
		// Cancellation is honored between steps only; an in-flight
		// fetch finishes or fails on its own.
		if ctx.Err() != nil {
			reason = StopCanceled
			break
		}

		switch state {
		case stateFetching:
			c.sendProgress(Progress{
				Seq:      len(st.Chapters) + 1,
				URL:      st.CurrentURL,
				Status:   "fetching",
				Chapters: len(st.Chapters),
			})

			body, attempts, err := c.fetcher.Fetch(ctx, st.CurrentURL)
			st.Attempts = attempts
			if err != nil {
				if ctx.Err() != nil {
					reason = StopCanceled
					state = stateStopping
					continue
				}
				c.log.Error("giving up on chapter", "url", st.CurrentURL, "error", err)
				consecutiveFailures++
				if next, ok := c.stepOver(st, consecutiveFailures); ok {
					st.CurrentURL = next
					continue
				}
				if consecutiveFailures >= c.opts.MaxConsecutiveFailures {
					reason = StopTooManyFailures
				} else {
					reason = StopFetchFailed
				}
				state = stateStopping
				continue
			}
			html = body
			state = stateParsing

		case stateParsing:
			p, err := c.source.ParsePage(html, st.CurrentURL)
			if err != nil {
				c.log.Warn("skipping unparseable chapter", "url", st.CurrentURL, "error", err)
				c.sendProgress(Progress{
					Seq:      len(st.Chapters) + 1,
					URL:      st.CurrentURL,
					Status:   "skipped",
					Chapters: len(st.Chapters),
					Err:      err,
				})
				consecutiveFailures++
				if next, ok := c.stepOver(st, consecutiveFailures); ok {
					st.CurrentURL = next
					state = stateFetching
					continue
				}
				if consecutiveFailures >= c.opts.MaxConsecutiveFailures {
					reason = StopTooManyFailures
				} else {
					reason = StopParseFailed
				}
				state = stateStopping
				continue
			}
			consecutiveFailures = 0

			if len(p.Paragraphs) == 0 {
				c.log.Info("no content found, stopping", "url", st.CurrentURL)
				reason = StopNoContent
				state = stateStopping
				continue
			}

			page = p
			state = stateAdvancing

		case stateAdvancing:
			chapter := data.Chapter{
				Index:      len(st.Chapters) + 1,
				Title:      page.Title,
				Paragraphs: page.Paragraphs,
				URL:        st.CurrentURL,
			}
			st.Chapters = append(st.Chapters, chapter)
			st.NextURL = page.NextURL
			sinceCheckpoint++

			c.log.Info("chapter saved",
				"index", chapter.Index, "title", chapter.Title, "paragraphs", len(chapter.Paragraphs))
			c.sendProgress(Progress{
				Seq:      chapter.Index,
				URL:      chapter.URL,
				Title:    chapter.Title,
				Status:   "parsed",
				Chapters: len(st.Chapters),
			})

			if sinceCheckpoint >= c.opts.CheckpointInterval {
				if err := c.checkpoint.Save(st); err != nil {
					c.log.Error("checkpoint write failed", "error", err)
				}
				sinceCheckpoint = 0
			}

			if c.opts.MaxChapters > 0 && len(st.Chapters) >= c.opts.MaxChapters {
				c.log.Info("chapter cap reached", "max", c.opts.MaxChapters)
				reason = StopCapReached
				state = stateStopping
				continue
			}
			if page.NextURL == "" {
				c.log.Info("no next chapter link, crawl complete")
				reason = StopComplete
				state = stateStopping
				continue
			}

			c.sleep(c.politenessDelay())
			st.CurrentURL = page.NextURL
			st.NextURL = ""
			state = stateFetching
		}
	}

	if err := c.checkpoint.Save(st); err != nil {
		c.log.Error("final checkpoint write failed", "error", err)
	}
	c.sendProgress(Progress{
		URL:      st.CurrentURL,
		Status:   "stopped",
		Chapters: len(st.Chapters),
	})
	c.log.Info("crawl stopped", "reason", string(reason), "chapters", len(st.Chapters))
	return reason
}

// stepOver decides whether a failed chapter can be walked past: the
// consecutive-failure cap must not be hit and a next URL must be
// derivable from the current one.
func (c *Crawler) stepOver(st *data.CrawlState, consecutiveFailures int) (string, bool) {
	if consecutiveFailures >= c.opts.MaxConsecutiveFailures {
		c.log.Info("consecutive failure limit reached", "limit", c.opts.MaxConsecutiveFailures)
		return "", false
	}
	next, ok := c.source.NextAfter(st.CurrentURL)
	if !ok {
		return "", false
	}
	c.log.Info("stepping over failed chapter", "from", st.CurrentURL, "to", next)
	c.sleep(c.politenessDelay())
	return next, true
}

func (c *Crawler) politenessDelay() time.Duration {
	spread := c.opts.DelayMax - c.opts.DelayMin
	if spread <= 0 {
		return c.opts.DelayMin
	}
	return c.opts.DelayMin + time.Duration(rand.Int64N(int64(spread)))
}

// sendProgress delivers an update without ever blocking the loop.
func (c *Crawler) sendProgress(p Progress) {
	select {
	case c.progressChan <- p:
	default:
	}
}
