package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kerbaras/novelbind/pkg/data"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List crawled books in the local archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		repo, err := data.OpenRepository(cfg.ArchiveFile)
		if err != nil {
			return err
		}
		defer repo.Close()

		books, err := repo.ListBooks()
		if err != nil {
			return err
		}

		if len(books) == 0 {
			fmt.Println("No books in the archive yet. Run 'novelbind crawl' first.")
			return nil
		}

		columns := []table.Column{
			{Title: "Title", Width: 40},
			{Title: "Author", Width: 20},
			{Title: "Status", Width: 10},
			{Title: "Chapters", Width: 8},
			{Title: "EPUB", Width: 40},
		}

		rows := []table.Row{}
		for _, book := range books {
			count, _ := repo.ChapterCount(book.ID)
			rows = append(rows, table.Row{
				book.Title,
				book.Author,
				book.Status,
				fmt.Sprintf("%d", count),
				book.EPUBPath,
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithHeight(len(rows)+1),
		)

		style := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder())
		fmt.Println(style.Render(t.View()))
		return nil
	},
}
