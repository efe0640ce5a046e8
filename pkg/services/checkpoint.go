package services

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kerbaras/novelbind/pkg/data"
	"github.com/kerbaras/novelbind/pkg/utils"
)

// Checkpoint persists crawl progress as a single JSON file, overwritten
// on every save. Last write wins; there is exactly one writer.
type Checkpoint struct {
	path string
}

func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{path: path}
}

func (c *Checkpoint) Path() string { return c.path }

// Save snapshots the state. The write goes to a temp file first and is
// renamed into place, so a crash mid-write leaves the previous snapshot
// intact. Saving the same state twice produces identical bytes.
func (c *Checkpoint) Save(st *data.CrawlState) error {
	if st == nil {
		return fmt.Errorf("crawl state cannot be nil")
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	b = append(b, '\n')
	if err := utils.WriteFileAtomic(c.path, b, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint back, or returns nil when none exists.
func (c *Checkpoint) Load() (*data.CrawlState, error) {
	b, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st data.CrawlState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &st, nil
}
