// Package main provides the presenter CLI.
//
// presenter projects stored records into public or private JSON views:
//   - seed writes the blog fixture into a SQLite database
//   - check validates descriptors, against the database schema if it exists
//   - present prints the view of one record
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `presenter projects stored records into JSON views.

Usage:
  presenter <command> [flags]

Commands:
  seed      write the blog fixture into the database
  check     validate descriptors (and the database schema, if present)
  present   print the view of one record

Run "presenter <command> -h" for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var cmd func(context.Context, []string, io.Writer, io.Writer) error

	switch args[0] {
	case "seed":
		cmd = runSeed
	case "check":
		cmd = runCheck
	case "present":
		cmd = runPresent
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err := cmd(ctx, args[1:], stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}
