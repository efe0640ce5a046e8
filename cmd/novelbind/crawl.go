package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kerbaras/novelbind/pkg/config"
)

var (
	crawlResume      bool
	crawlTUI         bool
	crawlOutput      string
	crawlMaxChapters int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl chapters and assemble the EPUB",
	Long: "Crawl chapters starting from the configured seed URLs and assemble\n" +
		"the result into an EPUB. Same as running novelbind with no arguments,\n" +
		"plus resume and TUI options.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(crawlResume, crawlTUI, func(cfg *config.Config) {
			if cmd.Flags().Changed("output") {
				cfg.Output = crawlOutput
			}
			if cmd.Flags().Changed("max-chapters") {
				cfg.MaxChapters = crawlMaxChapters
			}
		})
	},
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlResume, "resume", false, "continue from the checkpoint file")
	crawlCmd.Flags().BoolVar(&crawlTUI, "tui", false, "show live progress in a TUI")
	crawlCmd.Flags().StringVar(&crawlOutput, "output", "", "output directory for the EPUB")
	crawlCmd.Flags().IntVar(&crawlMaxChapters, "max-chapters", 0, "stop after this many chapters (0 = unlimited)")
}
