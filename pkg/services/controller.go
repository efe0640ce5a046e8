package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kerbaras/novelbind/pkg/config"
	"github.com/kerbaras/novelbind/pkg/data"
	"github.com/kerbaras/novelbind/pkg/fetcher"
	"github.com/kerbaras/novelbind/pkg/integrations"
	"github.com/kerbaras/novelbind/pkg/sources"
	"github.com/kerbaras/novelbind/pkg/utils"
)

// RunResult is what a finished run hands back to the CLI.
type RunResult struct {
	Book     *data.Book
	EPUBPath string
	Reason   StopReason
}

// Controller wires the fetcher, source, crawler, assembler and archive
// together for one run.
type Controller struct {
	cfg        *config.Config
	crawler    *Crawler
	checkpoint *Checkpoint
	source     sources.Source
	assembler  integrations.Assembler
	repo       *data.Repository
	log        *slog.Logger
}

func NewController(cfg *config.Config, log *slog.Logger) (*Controller, error) {
	if log == nil {
		log = slog.Default()
	}

	source, err := sources.NewSelectorSource(cfg.Selectors, cfg.NextURLPattern, log)
	if err != nil {
		return nil, err
	}

	f := fetcher.New(fetcher.Options{
		Timeout:      cfg.Timeout.Duration,
		MaxRetries:   cfg.MaxRetries,
		UserAgent:    cfg.UserAgent,
		RetryWaitMin: cfg.RetryWaitMin.Duration,
		RetryWaitMax: cfg.RetryWaitMax.Duration,
	}, log)

	checkpoint := NewCheckpoint(cfg.CheckpointFile)
	crawler := NewCrawler(f, source, checkpoint, CrawlerOptions{
		MaxChapters:            cfg.MaxChapters,
		CheckpointInterval:     cfg.CheckpointInterval,
		DelayMin:               cfg.DelayMin.Duration,
		DelayMax:               cfg.DelayMax.Duration,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}, log)

	// The archive is best-effort: a broken database never blocks a crawl.
	var repo *data.Repository
	if cfg.ArchiveFile != "" {
		repo, err = data.OpenRepository(cfg.ArchiveFile)
		if err != nil {
			log.Warn("book archive unavailable", "path", cfg.ArchiveFile, "error", err)
			repo = nil
		}
	}

	return &Controller{
		cfg:        cfg,
		crawler:    crawler,
		checkpoint: checkpoint,
		source:     source,
		assembler:  integrations.NewEPUBWriter(cfg.Output),
		repo:       repo,
		log:        log,
	}, nil
}

// Crawler exposes the crawler so callers can consume progress updates.
func (c *Controller) Crawler() *Crawler { return c.crawler }

func (c *Controller) Close() {
	c.crawler.Close()
	if c.repo != nil {
		c.repo.Close()
	}
}

// Run crawls the configured seeds (or resumes from the checkpoint) and
// always attempts assembly from whatever was accumulated. The returned
// error is non-nil only when the artifact itself could not be produced.
func (c *Controller) Run(ctx context.Context, resume bool) (*RunResult, error) {
	st, reason, err := c.crawl(ctx, resume)
	if err != nil {
		return nil, err
	}

	book := &data.Book{
		ID:        bookID(c.cfg.Title),
		Title:     c.cfg.Title,
		Author:    c.cfg.Author,
		Language:  c.cfg.Language,
		SourceURL: st.StartURL,
		Status:    statusFor(reason),
		Chapters:  st.Chapters,
	}

	path, err := c.assembler.Write(book)
	if err != nil {
		book.Status = "error"
		c.archive(book)
		return nil, err
	}
	book.EPUBPath = path
	c.archive(book)

	c.log.Info("run finished",
		"reason", string(reason), "chapters", len(book.Chapters), "epub", path)
	return &RunResult{Book: book, EPUBPath: path, Reason: reason}, nil
}

func (c *Controller) crawl(ctx context.Context, resume bool) (*data.CrawlState, StopReason, error) {
	if resume {
		st, err := c.checkpoint.Load()
		if err != nil {
			return nil, "", fmt.Errorf("cannot resume: %w", err)
		}
		if st != nil {
			return c.resume(ctx, st)
		}
		c.log.Info("no checkpoint found, starting fresh")
	}

	seeds, err := c.cfg.Seeds()
	if err != nil {
		return nil, "", err
	}

	st := &data.CrawlState{StartURL: seeds[0], CurrentURL: seeds[0]}
	reason := StopComplete
	for i, seed := range seeds {
		if i > 0 {
			st.CurrentURL = seed
			st.NextURL = ""
			c.log.Info("continuing with next seed", "seed", seed)
		}
		reason = c.crawler.Crawl(ctx, st)
		if reason == StopCapReached || reason == StopCanceled {
			break
		}
	}
	return st, reason, nil
}

// resume continues a checkpointed chain from its next URL. The chapters
// already in the checkpoint keep their order and numbering.
func (c *Controller) resume(ctx context.Context, st *data.CrawlState) (*data.CrawlState, StopReason, error) {
	next := st.NextURL
	if next == "" {
		derived, ok := c.source.NextAfter(st.CurrentURL)
		if !ok {
			c.log.Info("checkpoint has no continuation point, assembling as-is",
				"chapters", len(st.Chapters))
			return st, StopComplete, nil
		}
		next = derived
	}

	c.log.Info("resuming from checkpoint", "chapters", len(st.Chapters), "next", next)
	st.CurrentURL = next
	st.NextURL = ""
	reason := c.crawler.Crawl(ctx, st)
	return st, reason, nil
}

// archive records the run in the local library. Failures are logged and
// swallowed: only assembly failures may fail a run.
func (c *Controller) archive(book *data.Book) {
	if c.repo == nil {
		return
	}
	if err := c.repo.SaveBook(book); err != nil {
		c.log.Warn("failed to archive book", "id", book.ID, "error", err)
	}
}

func statusFor(reason StopReason) string {
	switch reason {
	case StopComplete, StopNoContent, StopCapReached:
		return "completed"
	default:
		return "partial"
	}
}

func bookID(title string) string {
	slug := strings.ToLower(utils.SanitizeFilename(title))
	slug = strings.ReplaceAll(slug, " ", "-")
	return fmt.Sprintf("%s-%d", slug, time.Now().Unix())
}
