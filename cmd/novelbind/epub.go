package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbaras/novelbind/pkg/data"
	"github.com/kerbaras/novelbind/pkg/integrations"
	"github.com/kerbaras/novelbind/pkg/services"
)

var epubCmd = &cobra.Command{
	Use:   "epub",
	Short: "Rebuild the EPUB from the checkpoint file",
	Long: "Assemble an EPUB from the chapters recorded in the checkpoint,\n" +
		"without fetching anything. Useful after an interrupted run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := services.NewCheckpoint(cfg.CheckpointFile).Load()
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("no checkpoint at %s", cfg.CheckpointFile)
		}

		book := &data.Book{
			Title:     cfg.Title,
			Author:    cfg.Author,
			Language:  cfg.Language,
			SourceURL: st.StartURL,
			Chapters:  st.Chapters,
		}

		path, err := integrations.NewEPUBWriter(cfg.Output).Write(book)
		if err != nil {
			return err
		}

		fmt.Printf("EPUB written to %s (%d chapters)\n", path, len(book.Chapters))
		return nil
	},
}
