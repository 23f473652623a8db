package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func runLoginCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e, err := buildEnv(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.close()

	pass := *password
	if pass == "" {
		pass, err = readLine("password: ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading password:", err)
			return 1
		}
	}

	identity, err := e.auth.Login(ctx, *email, pass)
	if err != nil {
		return fail(err)
	}
	name := identity.Name
	if name == "" {
		name = identity.Email
	}
	fmt.Printf("Logged in as %s.\n", name)
	return 0
}
