package main

import (
	"context"
	"fmt"
	"os"
)

func runLogoutCommand(ctx context.Context, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "usage: taskdeck logout")
		return 2
	}

	e, err := buildEnv(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.close()

	// Logout is idempotent; logging out while logged out succeeds.
	if err := e.sessions.Logout(); err != nil {
		return fail(err)
	}
	fmt.Println("Logged out.")
	return 0
}
