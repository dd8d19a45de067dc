package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/imkarma/crewdeck/internal/tui"
	"github.com/spf13/cobra"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open interactive board browser",
	Long:  "Opens an interactive terminal UI for browsing tasks, ledgers and open approval ballots.",
	RunE:  runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	model := tui.New(s)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
