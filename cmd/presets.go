package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the configured lighting presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, p := range cfg.Lighting {
			fmt.Printf("%-10s tint %.2f/%.2f/%.2f  brightness %.2f\n",
				p.Name, p.R, p.G, p.B, p.Brightness)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
