package cli

import (
	"fmt"
	"strings"

	"github.com/imkarma/crewdeck/internal/store"
	"github.com/spf13/cobra"
)

// ANSI color codes.
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorWhite   = "\033[37m"
	colorBgRed   = "\033[41m"
)

var boardProjectID int64

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the task board",
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().Int64VarP(&boardProjectID, "project", "p", 0, "limit the board to one project")
}

func runBoard(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.ListTasks(store.TaskFilter{ProjectID: boardProjectID})
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Printf("%sBoard is empty.%s Create tasks through the API: %sPOST /api/v1/tasks%s\n",
			colorDim, colorReset, colorCyan, colorReset)
		return nil
	}

	// Group tasks by status.
	columns := map[store.TaskStatus][]store.Task{}
	for _, t := range tasks {
		columns[t.Status] = append(columns[t.Status], t)
	}

	type col struct {
		status store.TaskStatus
		label  string
		color  string
	}
	order := []col{
		{store.StatusTodo, "TODO", colorWhite},
		{store.StatusTaskReview, "TASK REVIEW", colorMagenta},
		{store.StatusInProgress, "IN PROGRESS", colorBlue},
		{store.StatusResultReview, "RESULT REVIEW", colorMagenta},
		{store.StatusDone, "DONE", colorGreen},
	}

	// Print header.
	colWidth := 24
	headerLine := ""
	sepLine := ""
	for _, c := range order {
		count := len(columns[c.status])
		header := fmt.Sprintf(" %s%s%s (%d)", c.color+colorBold, c.label, colorReset, count)
		// padRight needs visible length, not byte length (ANSI codes add bytes).
		visibleLen := len(fmt.Sprintf(" %s (%d)", c.label, count))
		padding := colWidth - visibleLen
		if padding < 0 {
			padding = 0
		}
		headerLine += header + strings.Repeat(" ", padding)
		sepLine += strings.Repeat("─", colWidth)
	}
	fmt.Println(headerLine)
	fmt.Println(colorDim + sepLine + colorReset)

	// Find max rows.
	maxRows := 0
	for _, c := range order {
		if len(columns[c.status]) > maxRows {
			maxRows = len(columns[c.status])
		}
	}

	// Print rows.
	for i := 0; i < maxRows; i++ {
		line := ""
		for _, c := range order {
			tasks := columns[c.status]
			cell := ""
			if i < len(tasks) {
				t := tasks[i]
				priColor := priorityColor(t.Priority)
				idStr := fmt.Sprintf("#%d", t.ID)
				titleStr := truncate(t.Title, colWidth-len(idStr)-3)
				cell = fmt.Sprintf(" %s%s%s %s", priColor, idStr, colorReset, titleStr)
				visibleLen := len(fmt.Sprintf(" %s %s", idStr, titleStr))
				padding := colWidth - visibleLen
				if padding < 0 {
					padding = 0
				}
				cell += strings.Repeat(" ", padding)
			} else {
				cell = strings.Repeat(" ", colWidth)
			}
			line += cell
		}
		fmt.Println(line)
	}

	if n := len(columns[store.StatusCancelled]); n > 0 {
		fmt.Printf("\n%s%d cancelled task(s) hidden%s\n", colorDim, n, colorReset)
	}

	return nil
}
