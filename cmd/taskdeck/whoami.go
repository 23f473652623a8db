package main

import (
	"context"
	"fmt"
	"os"
)

func runWhoamiCommand(ctx context.Context, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "usage: taskdeck whoami")
		return 2
	}

	e, err := buildEnv(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.close()

	if !e.sessions.IsAuthenticated() {
		fmt.Println("Not logged in.")
		return 1
	}
	identity, ok := e.sessions.CurrentIdentity()
	if !ok {
		// Token present but the identity blob is gone or corrupt; the
		// session itself is still valid.
		fmt.Println("Logged in (identity details unavailable).")
		return 0
	}
	if identity.Name != "" {
		fmt.Printf("%s <%s>\n", identity.Name, identity.Email)
	} else {
		fmt.Println(identity.Email)
	}
	return 0
}
