package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kerbaras/novelbind/pkg/app"
	"github.com/kerbaras/novelbind/pkg/config"
	"github.com/kerbaras/novelbind/pkg/services"
	"github.com/kerbaras/novelbind/pkg/utils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "novelbind",
	Short: "Crawl a web novel chapter by chapter into an EPUB",
	Long: "Follow next-chapter links from a seed URL, collect chapter text,\n" +
		"and assemble everything into a single EPUB file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Running with no subcommand starts a crawl from the config file.
		return runCrawl(false, false, nil)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "novelbind.yaml", "config file")
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(epubCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(initCmd)
}

func Execute() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %s not found (run 'novelbind init' to create one)", cfgFile)
	}
	return cfg, err
}

// runCrawl is shared by the root command and `novelbind crawl`. override,
// when non-nil, applies command-line flag values on top of the config.
func runCrawl(resume, tui bool, override func(*config.Config)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if override != nil {
		override(cfg)
	}

	log, closeLog, err := utils.NewLogger(cfg.LogFile, cfg.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	controller, err := services.NewController(cfg, log)
	if err != nil {
		return err
	}
	defer controller.Close()

	// An interrupt stops the crawl between iterations; the chapters
	// collected so far are still assembled.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var result *services.RunResult
	if tui {
		result, err = app.NewApp(controller, resume).Run(ctx)
	} else {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for progress := range controller.Crawler().ProgressChannel() {
				switch progress.Status {
				case "parsed":
					fmt.Printf("  [%d] %s\n", progress.Seq, progress.Title)
				case "skipped":
					fmt.Printf("  [%d] skipped: %v\n", progress.Seq, progress.Err)
				}
			}
		}()
		result, err = controller.Run(ctx, resume)
		controller.Crawler().Close()
		<-done
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nCrawl stopped (%s): %d chapters\n", result.Reason, len(result.Book.Chapters))
	fmt.Printf("EPUB written to %s\n", result.EPUBPath)
	return nil
}
