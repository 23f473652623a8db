package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func runRegisterCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "account password (prompted when omitted)")
	confirm := fs.String("confirm", "", "password confirmation (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e, err := buildEnv(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer e.close()

	pass, conf := *password, *confirm
	if pass == "" {
		if pass, err = readLine("password: "); err != nil {
			fmt.Fprintln(os.Stderr, "Error reading password:", err)
			return 1
		}
	}
	if conf == "" {
		if conf, err = readLine("confirm password: "); err != nil {
			fmt.Fprintln(os.Stderr, "Error reading password:", err)
			return 1
		}
	}

	identity, err := e.auth.Register(ctx, *email, pass, conf, *name)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Registered and logged in as %s.\n", identity.Email)
	return 0
}
