// Package cli implements the administrative subcommands of the API binary.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// Deps are resolved lazily so each command only opens what it needs.
type Deps struct {
	Users  func(ctx context.Context) (users.Repository, func(), error)
	Jobs   func() (*JobsCLI, func(), error)
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the subcommand in args and returns the process exit code.
func Run(ctx context.Context, args []string, deps Deps) int {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if len(args) == 0 {
		usage(deps.Stderr)
		return 2
	}
	switch args[0] {
	case "createsuperuser":
		return createSuperuser(ctx, args[1:], deps)
	case "jobs":
		return jobsCommand(args[1:], deps)
	default:
		usage(deps.Stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: odyssey [createsuperuser -email E -password P [-username U] | jobs stats | jobs retry [-n N]]")
}

func createSuperuser(ctx context.Context, args []string, deps Deps) int {
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	fs.SetOutput(deps.Stderr)
	var opts SuperuserOptions
	fs.StringVar(&opts.Email, "email", "", "email address (required)")
	fs.StringVar(&opts.Username, "username", "", "username, defaults to the email local part")
	fs.StringVar(&opts.FirstName, "first-name", "", "first name")
	fs.StringVar(&opts.LastName, "last-name", "", "last name")
	fs.StringVar(&opts.Password, "password", os.Getenv("SUPERUSER_PASSWORD"), "password, defaults to $SUPERUSER_PASSWORD")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	repo, closeFn, err := deps.Users(ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "open database: %v\n", err)
		return 1
	}
	defer closeFn()
	id, err := CreateSuperuser(ctx, repo, opts)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "createsuperuser: %v\n", err)
		return 1
	}
	fmt.Fprintf(deps.Stdout, "superuser created with id %d\n", id)
	return 0
}

func jobsCommand(args []string, deps Deps) int {
	if len(args) == 0 {
		usage(deps.Stderr)
		return 2
	}
	jc, closeFn, err := deps.Jobs()
	if err != nil {
		fmt.Fprintf(deps.Stderr, "open queue: %v\n", err)
		return 1
	}
	defer closeFn()
	enc := json.NewEncoder(deps.Stdout)
	enc.SetIndent("", "  ")
	switch args[0] {
	case "stats":
		stats, err := jc.InspectQueue()
		if err != nil {
			fmt.Fprintf(deps.Stderr, "inspect queue: %v\n", err)
			return 1
		}
		_ = enc.Encode(stats)
	case "retry":
		fs := flag.NewFlagSet("jobs retry", flag.ContinueOnError)
		fs.SetOutput(deps.Stderr)
		size := fs.Int("n", 10, "number of tasks to list")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		infos, err := jc.ListRetry(*size)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "list retry: %v\n", err)
			return 1
		}
		type row struct {
			ID      string `json:"id"`
			Type    string `json:"type"`
			Retried int    `json:"retried"`
			LastErr string `json:"last_error"`
		}
		out := make([]row, 0, len(infos))
		for _, info := range infos {
			out = append(out, row{ID: info.ID, Type: info.Type, Retried: info.Retried, LastErr: info.LastErr})
		}
		_ = enc.Encode(out)
	default:
		usage(deps.Stderr)
		return 2
	}
	return 0
}
