package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/mini-event-api/pkg/datefmt"
	"github.com/noah-isme/mini-event-api/pkg/eventclient"
)

const (
	envURL     = "EVENTS_API_URL"
	envToken   = "EVENTS_API_TOKEN"
	defaultURL = "http://localhost:8080/api/v1"
)

// app is the state shared by every subcommand.
type app struct {
	client *eventclient.Client
	out    io.Writer
	errOut io.Writer
	dates  *datefmt.Formatter
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
	offline bool
}

var commands = map[string]command{
	"list":      {summary: "list or search events", run: runList},
	"get":       {summary: "show one event", run: runGet},
	"create":    {summary: "create an event", run: runCreate},
	"update":    {summary: "change fields of an event", run: runUpdate},
	"archive":   {summary: "archive an event", run: runArchive},
	"unarchive": {summary: "restore an archived event", run: runUnarchive},
	"toggle":    {summary: "flip the archived flag", run: runToggle},
	"delete":    {summary: "delete an event", run: runDelete},
	"category":  {summary: "suggest a category for a title", run: runCategory},
	"export":    {summary: "download events as csv, pdf or ics", run: runExport},
	"import":    {summary: "create events from a YAML file", run: runImport},
	"token":     {summary: "mint a bearer token from JWT_SECRET", run: runToken, offline: true},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("eventctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	baseURL := global.String("url", envOr(envURL, defaultURL), "API base URL including the prefix")
	token := global.String("token", os.Getenv(envToken), "bearer token for mutating calls")
	timeout := global.Duration("timeout", 15*time.Second, "per command timeout")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(stderr)
		return 2
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "eventctl: unknown command %q\n", name)
		usage(stderr)
		return 2
	}

	a := &app{out: stdout, errOut: stderr, dates: datefmt.New(nil)}
	if !cmd.offline {
		client, err := eventclient.New(*baseURL, eventclient.WithToken(*token))
		if err != nil {
			fmt.Fprintf(stderr, "eventctl: %v\n", err)
			return 2
		}
		a.client = client
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := cmd.run(ctx, a, global.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "eventctl %s: %v\n", name, err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: eventctl [-url URL] [-token TOKEN] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nenvironment: %s, %s\n", envURL, envToken)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
