package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kerbaras/novelbind/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  "Write a config file with the default settings, ready to edit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !initForce {
			if _, err := os.Stat(cfgFile); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgFile)
			}
		}

		cfg := config.Default()
		cfg.StartURLs = []string{"https://example.com/novel/chapter-1"}
		if err := config.Save(cfg, cfgFile); err != nil {
			return err
		}

		fmt.Printf("Wrote %s. Edit start_urls, title and author, then run 'novelbind'.\n", cfgFile)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}
