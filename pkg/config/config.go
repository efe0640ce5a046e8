package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kerbaras/novelbind/pkg/sources"
)

// Config is everything a crawl run needs. Values omitted from the file
// keep their defaults, so a config with just start_urls is valid.
type Config struct {
	// Seed chapter URLs, crawled in order into one book. SeedFile, if
	// set, is a plain text file with one URL per line appended after
	// StartURLs.
	StartURLs []string `yaml:"start_urls"`
	SeedFile  string   `yaml:"seed_file"`

	Title    string `yaml:"title"`
	Author   string `yaml:"author"`
	Language string `yaml:"language"`
	Output   string `yaml:"output"`

	MaxRetries  int      `yaml:"max_retries"`
	Timeout     Duration `yaml:"timeout"`
	MaxChapters int      `yaml:"max_chapters"` // 0 means unlimited

	CheckpointInterval int    `yaml:"checkpoint_interval"`
	CheckpointFile     string `yaml:"checkpoint_file"`

	// Politeness delay between successive chapter fetches.
	DelayMin Duration `yaml:"delay_min"`
	DelayMax Duration `yaml:"delay_max"`
	// Wait between retry attempts of the same URL.
	RetryWaitMin Duration `yaml:"retry_wait_min"`
	RetryWaitMax Duration `yaml:"retry_wait_max"`

	// Stop after this many fetch/parse failures in a row while walking
	// generated chapter URLs.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`

	Selectors      sources.Selectors `yaml:"selectors"`
	NextURLPattern string            `yaml:"next_url_pattern"`

	UserAgent   string `yaml:"user_agent"`
	ArchiveFile string `yaml:"archive_file"`
	LogFile     string `yaml:"log_file"`
	Debug       bool   `yaml:"debug"`
}

func Default() *Config {
	return &Config{
		Title:                  "Web Novel",
		Author:                 "Unknown",
		Language:               "en",
		Output:                 ".",
		MaxRetries:             3,
		Timeout:                DurationFrom(30 * time.Second),
		MaxChapters:            0,
		CheckpointInterval:     5,
		CheckpointFile:         "checkpoint.json",
		DelayMin:               DurationFrom(1 * time.Second),
		DelayMax:               DurationFrom(3 * time.Second),
		RetryWaitMin:           DurationFrom(2 * time.Second),
		RetryWaitMax:           DurationFrom(4 * time.Second),
		MaxConsecutiveFailures: 2,
		Selectors:              sources.DefaultSelectors(),
		NextURLPattern:         sources.DefaultNextURLPattern,
		ArchiveFile:            "novelbind.db",
		LogFile:                "crawler.log",
	}
}

// Load reads path and overlays it onto the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func Save(cfg *Config, path string) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) normalize() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Timeout.IsZero() {
		c.Timeout = DurationFrom(30 * time.Second)
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = 5
	}
	if c.DelayMax.Duration < c.DelayMin.Duration {
		c.DelayMax = c.DelayMin
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Output == "" {
		c.Output = "."
	}
}

// Seeds returns StartURLs plus the contents of SeedFile, in order.
// Blank lines and lines starting with '#' are skipped.
func (c *Config) Seeds() ([]string, error) {
	seeds := append([]string(nil), c.StartURLs...)

	if c.SeedFile != "" {
		f, err := os.Open(c.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open seed file: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			seeds = append(seeds, line)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("no start URLs configured")
	}
	return seeds, nil
}
