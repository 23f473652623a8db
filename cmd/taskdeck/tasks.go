package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/basket/taskdeck/internal/tasks"
)

func printTasksUsage() {
	fmt.Fprint(os.Stderr, `usage: taskdeck tasks <action>

  list [-filter all|active|completed] [-sort newest|oldest]
  add <title> [-desc <description>]
  done <id>
  rm <id> [-yes]
  edit <id> [-title <title>] [-desc <description>]
`)
}

func runTasksCommand(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printTasksUsage()
		return 2
	}

	e, err := buildEnv(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.close()

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "list":
		return runTasksList(ctx, e, args[1:])
	case "add":
		return runTasksAdd(ctx, e, args[1:])
	case "done":
		return runTasksDone(ctx, e, args[1:])
	case "rm":
		return runTasksRemove(ctx, e, args[1:])
	case "edit":
		return runTasksEdit(ctx, e, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown tasks action %q\n\n", args[0])
		printTasksUsage()
		return 2
	}
}

func runTasksList(ctx context.Context, e *env, args []string) int {
	fs := flag.NewFlagSet("tasks list", flag.ContinueOnError)
	filterName := fs.String("filter", "all", "all, active, or completed")
	sortName := fs.String("sort", "newest", "newest or oldest")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	filter, err := tasks.ParseFilter(*filterName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	sortBy, err := tasks.ParseSort(*sortName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if _, err := e.tasks.List(ctx); err != nil {
		return fail(err)
	}
	rows := e.tasks.Project(filter, sortBy)
	if len(rows) == 0 {
		fmt.Println("No tasks.")
		return 0
	}
	for _, t := range rows {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Printf("[%s] %s  %s", mark, t.ID, t.Title)
		if t.Description != "" {
			fmt.Printf("  (%s)", t.Description)
		}
		fmt.Println()
	}
	return 0
}

func runTasksAdd(ctx context.Context, e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: taskdeck tasks add <title> [-desc <description>]")
		return 2
	}
	title := args[0]
	fs := flag.NewFlagSet("tasks add", flag.ContinueOnError)
	desc := fs.String("desc", "", "task description")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	created, err := e.tasks.Create(ctx, title, *desc)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Created %s: %s\n", created.ID, created.Title)
	return 0
}

func runTasksDone(ctx context.Context, e *env, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: taskdeck tasks done <id>")
		return 2
	}

	updated, err := e.tasks.ToggleCompletion(ctx, args[0])
	if err != nil {
		return fail(err)
	}
	state := "pending"
	if updated.Completed {
		state = "completed"
	}
	fmt.Printf("%s is now %s.\n", updated.Title, state)
	return 0
}

func runTasksRemove(ctx context.Context, e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: taskdeck tasks rm <id> [-yes]")
		return 2
	}
	id := args[0]
	fs := flag.NewFlagSet("tasks rm", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	if !*yes {
		answer, err := readLine(fmt.Sprintf("delete task %s? [y/N] ", id))
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading answer:", err)
			return 1
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Println("Aborted.")
			return 0
		}
	}

	if err := e.tasks.Delete(ctx, id); err != nil {
		return fail(err)
	}
	fmt.Println("Deleted.")
	return 0
}

func runTasksEdit(ctx context.Context, e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: taskdeck tasks edit <id> [-title <title>] [-desc <description>]")
		return 2
	}
	id := args[0]
	fs := flag.NewFlagSet("tasks edit", flag.ContinueOnError)
	title := fs.String("title", "", "new title")
	desc := fs.String("desc", "", "new description")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	var fields tasks.UpdateFields
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			fields.Title = title
		case "desc":
			fields.Description = desc
		}
	})

	updated, err := e.tasks.Update(ctx, id, fields)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Updated %s: %s\n", updated.ID, updated.Title)
	return 0
}
