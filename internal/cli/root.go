// Package cli implements the crewdeck command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crewdeck",
	Short: "Team task tracking with stakeholder approval",
	Long:  "crewdeck — a project management backend whose status changes can be\ngated on unanimous stakeholder approval.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(statusCmd)
}
