package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/basket/taskdeck/internal/config"
	"github.com/basket/taskdeck/internal/gateway"
)

type checkResult struct {
	name    string
	status  string // "OK", "WARN", "FAIL"
	message string
}

func runDoctorCommand(ctx context.Context, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "usage: taskdeck doctor")
		return 2
	}

	var results []checkResult

	cfg, err := config.Load()
	if err != nil {
		results = append(results, checkResult{"config", "FAIL", err.Error()})
		printDoctorReport(results)
		return 1
	}
	results = append(results, checkResult{"config", "OK",
		fmt.Sprintf("base_url %s (home %s)", cfg.BaseURL, cfg.HomeDir)})

	e, err := buildEnv(ctx, false)
	if err != nil {
		results = append(results, checkResult{"client", "FAIL", err.Error()})
		printDoctorReport(results)
		return 1
	}
	defer e.close()

	if e.sessions.IsAuthenticated() {
		who := "logged in"
		if identity, ok := e.sessions.CurrentIdentity(); ok {
			who = "logged in as " + identity.Email
		}
		results = append(results, checkResult{"session", "OK", who})
	} else {
		results = append(results, checkResult{"session", "WARN", "not logged in"})
	}

	// Any HTTP status proves the backend is reachable; only a transport
	// failure means it is not.
	_, err = e.gw.DoRaw(ctx, http.MethodGet, "/tasks/stats", nil)
	switch gateway.KindOf(err) {
	case "":
		results = append(results, checkResult{"backend", "OK", "reachable, session accepted"})
	case gateway.KindTransport:
		results = append(results, checkResult{"backend", "FAIL", gatewayMessage(err)})
	case gateway.KindUnauthorized:
		results = append(results, checkResult{"backend", "WARN", "reachable, but the session was rejected"})
	default:
		results = append(results, checkResult{"backend", "WARN", gatewayMessage(err)})
	}

	failed := printDoctorReport(results)
	if failed {
		return 1
	}
	return 0
}

func printDoctorReport(results []checkResult) bool {
	fmt.Printf("taskdeck doctor (%s)\n---\n", Version)
	failed := false
	for _, res := range results {
		icon := "✅"
		switch res.status {
		case "FAIL":
			icon = "❌"
			failed = true
		case "WARN":
			icon = "⚠️ "
		}
		fmt.Printf("%s %-8s: %s\n", icon, res.name, res.message)
	}
	return failed
}
