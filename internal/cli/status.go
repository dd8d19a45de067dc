package cli

import (
	"fmt"

	"github.com/imkarma/crewdeck/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick status overview",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.ListTasks(store.TaskFilter{})
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Printf("No tasks yet. Create one through the API: %sPOST /api/v1/tasks%s\n", colorCyan, colorReset)
		return nil
	}

	counts := map[store.TaskStatus]int{}
	var awaiting []store.Task

	for _, t := range tasks {
		counts[t.Status]++
		pending, err := s.PendingChange(t.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			awaiting = append(awaiting, t)
		}
	}

	fmt.Printf("%sTasks: %d total%s\n", colorBold, len(tasks), colorReset)
	fmt.Printf("  %-16s %s%d%s\n", "todo:", colorWhite, counts[store.StatusTodo], colorReset)
	fmt.Printf("  %-16s %s%d%s\n", "task_review:", colorMagenta, counts[store.StatusTaskReview], colorReset)
	fmt.Printf("  %-16s %s%d%s\n", "in_progress:", colorBlue, counts[store.StatusInProgress], colorReset)
	fmt.Printf("  %-16s %s%d%s\n", "result_review:", colorMagenta, counts[store.StatusResultReview], colorReset)
	fmt.Printf("  %-16s %s%d%s\n", "done:", colorGreen, counts[store.StatusDone], colorReset)
	fmt.Printf("  %-16s %s%d%s\n", "cancelled:", colorRed, counts[store.StatusCancelled], colorReset)

	if len(awaiting) > 0 {
		fmt.Printf("\n%s⚠  Awaiting stakeholder approval:%s\n", colorYellow+colorBold, colorReset)
		for _, t := range awaiting {
			fmt.Printf("  %s#%d%s: %s\n", colorYellow, t.ID, colorReset, t.Title)
		}
	}

	return nil
}
