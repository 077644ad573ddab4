package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/soloagency/internal/orchestrator"
	"github.com/ShayCichocki/soloagency/pkg/models"
)

var greetCmd = &cobra.Command{
	Use:   "greet",
	Short: "Print the opening line of a conversation",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		label := color.New(color.FgCyan, color.Bold).Sprintf("[%s]", models.OrchestratorID)
		fmt.Printf("%s %s\n", label, orchestrator.Greeting)
	},
}
