package main

import (
	"fmt"
	"io"
	"os"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "serve", "server":
		return runServe(stderr)
	case "run":
		return runRunCmd(args[2:], stdout, stderr)
	case "token":
		return runTokenCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "opskit - BrightSignal operator command toolkit")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  opskit serve                 Start the guarded internal HTTP surface")
	fmt.Fprintln(w, "  opskit run <command> [flags] Execute a toolkit command locally")
	fmt.Fprintln(w, "  opskit token <tenant>        Issue a hard-reset confirmation token")
	fmt.Fprintln(w, "  opskit verify <report.json>  Verify a persisted report")
	fmt.Fprintln(w, "  opskit help                  Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands for `run`: status, reset-tenant, reset-tenant-hard,")
	fmt.Fprintln(w, "  seed-alert-scenario, run-alert-rules")
	fmt.Fprintln(w, "")
}
