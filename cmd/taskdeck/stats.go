package main

import (
	"context"
	"fmt"
	"os"
)

func runStatsCommand(ctx context.Context, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "usage: taskdeck stats")
		return 2
	}

	e, err := buildEnv(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.close()

	stats, err := e.tasks.Stats(ctx)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Total:      %d\n", stats.TotalTasks)
	fmt.Printf("Completed:  %d\n", stats.CompletedTasks)
	fmt.Printf("Pending:    %d\n", stats.PendingTasks)
	fmt.Printf("Completion: %.0f%%\n", stats.CompletionRate)
	if len(stats.RecentActivity) > 0 {
		fmt.Println("\nRecent activity:")
		for _, a := range stats.RecentActivity {
			mark := " "
			if a.Completed {
				mark = "x"
			}
			fmt.Printf("  [%s] %s\n", mark, a.Title)
		}
	}
	return 0
}
