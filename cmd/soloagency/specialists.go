package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/soloagency/internal/specialist"
)

var specialistsCmd = &cobra.Command{
	Use:   "specialists",
	Short: "List the specialists questions are routed to",
	Long: `List the configured specialists in routing order with the handoff
line the router chooses them by. Set specialists.file to load a custom
catalogue instead of the built-in one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := specialist.Load(cfg.Specialists.File)
		if err != nil {
			return err
		}

		for _, d := range registry.All() {
			marker := " "
			if d.ID == cfg.Defaults.Specialist {
				marker = color.YellowString("*")
			}
			fmt.Printf("%s %s %s\n  %s\n",
				marker,
				color.New(color.FgCyan, color.Bold).Sprint(d.ID),
				color.New(color.Faint).Sprintf("(%s)", d.DisplayName()),
				d.Handoff)
		}
		return nil
	},
}
