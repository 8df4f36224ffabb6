package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
	"github.com/noah-isme/mini-event-api/internal/service"
	"github.com/noah-isme/mini-event-api/pkg/config"
)

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parseWithID accepts the event id either before or after the flags.
func parseWithID(fs *flag.FlagSet, args []string) (string, error) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id := args[0]
		if err := fs.Parse(args[1:]); err != nil {
			return "", err
		}
		if fs.NArg() > 0 {
			return "", fmt.Errorf("unexpected arguments %v", fs.Args())
		}
		return id, nil
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s needs exactly one event id", fs.Name())
	}
	return fs.Arg(0), nil
}

type filterFlags struct {
	search   string
	category string
	archived bool
	all      bool
}

func (f *filterFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.search, "search", "", "search title and notes")
	fs.StringVar(&f.category, "category", "", "Work, Personal, Other or all")
	fs.BoolVar(&f.archived, "archived", false, "only archived events")
	fs.BoolVar(&f.all, "all", false, "include archived events")
}

func (f *filterFlags) filter() (models.EventFilter, error) {
	filter := models.EventFilter{Search: strings.TrimSpace(f.search)}
	if c := strings.TrimSpace(f.category); c != "" && !strings.EqualFold(c, "all") {
		category, err := models.ParseCategory(c)
		if err != nil {
			return filter, err
		}
		filter.Category = category
	}
	switch {
	case f.archived:
		filter.Archived = models.ArchivedOnly
	case f.all:
		filter.Archived = models.ArchivedInclude
	}
	return filter, nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := a.flags("list")
	var ff filterFlags
	ff.register(fs)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", models.DefaultPageSize, "page size")
	sortBy := fs.String("sort", "", "date, title or createdAt")
	order := fs.String("order", "", "asc or desc")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter, err := ff.filter()
	if err != nil {
		return err
	}
	filter.Page = *page
	filter.Limit = *limit
	filter.SortBy = models.SortField(*sortBy)
	filter.SortOrder = models.SortOrder(strings.ToLower(*order))

	result, err := a.client.List(ctx, filter)
	if err != nil {
		return err
	}
	if err := a.renderEvents(result.Events); err != nil {
		return err
	}
	if p := result.Pagination; p != nil {
		fmt.Fprintf(a.out, "\npage %d of %d, %d events\n", p.Page, max(p.TotalPages, 1), p.Total)
	}
	return nil
}

func runGet(ctx context.Context, a *app, args []string) error {
	id, err := parseWithID(a.flags("get"), args)
	if err != nil {
		return err
	}
	event, err := a.client.Get(ctx, id)
	if err != nil {
		return err
	}
	return a.renderEvent(event)
}

type eventFlags struct {
	title, date, clock, notes, category *string
	fs                                  *flag.FlagSet
}

func registerEventFlags(fs *flag.FlagSet) *eventFlags {
	return &eventFlags{
		fs:       fs,
		title:    fs.String("title", "", "event title"),
		date:     fs.String("date", "", "date as YYYY-MM-DD"),
		clock:    fs.String("time", "", "time as HH:MM (24h)"),
		notes:    fs.String("notes", "", "free text notes, empty clears on update"),
		category: fs.String("category", "", "Work, Personal or Other; empty lets the server decide"),
	}
}

// set returns the flags given explicitly on the command line.
func (e *eventFlags) set() map[string]bool {
	seen := map[string]bool{}
	e.fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	return seen
}

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := a.flags("create")
	ef := registerEventFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req := dto.CreateEventRequest{Title: *ef.title, Date: *ef.date, Time: *ef.clock, Category: *ef.category}
	if ef.set()["notes"] {
		req.Notes = ef.notes
	}
	event, err := a.client.Create(ctx, req)
	if err != nil {
		return err
	}
	return a.renderEvent(event)
}

func runUpdate(ctx context.Context, a *app, args []string) error {
	fs := a.flags("update")
	ef := registerEventFlags(fs)
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	seen := ef.set()
	var req dto.UpdateEventRequest
	if seen["title"] {
		req.Title = ef.title
	}
	if seen["date"] {
		req.Date = ef.date
	}
	if seen["time"] {
		req.Time = ef.clock
	}
	if seen["notes"] {
		req.Notes = ef.notes
	}
	if seen["category"] {
		req.Category = ef.category
	}
	if req.Empty() {
		return fmt.Errorf("nothing to update, pass at least one of -title -date -time -notes -category")
	}
	event, err := a.client.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return a.renderEvent(event)
}

func runArchive(ctx context.Context, a *app, args []string) error {
	return a.eventAction(ctx, "archive", args, a.client.Archive)
}

func runUnarchive(ctx context.Context, a *app, args []string) error {
	return a.eventAction(ctx, "unarchive", args, a.client.Unarchive)
}

func runToggle(ctx context.Context, a *app, args []string) error {
	return a.eventAction(ctx, "toggle", args, a.client.ToggleArchive)
}

func (a *app) eventAction(ctx context.Context, name string, args []string, call func(context.Context, string) (*models.Event, error)) error {
	id, err := parseWithID(a.flags(name), args)
	if err != nil {
		return err
	}
	event, err := call(ctx, id)
	if err != nil {
		return err
	}
	return a.renderEvent(event)
}

func runDelete(ctx context.Context, a *app, args []string) error {
	id, err := parseWithID(a.flags("delete"), args)
	if err != nil {
		return err
	}
	if err := a.client.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", id)
	return nil
}

func runCategory(ctx context.Context, a *app, args []string) error {
	fs := a.flags("category")
	title := fs.String("title", "", "event title")
	notes := fs.String("notes", "", "event notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" && fs.NArg() > 0 {
		*title = strings.Join(fs.Args(), " ")
	}
	category, err := a.client.SuggestCategory(ctx, *title, *notes)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, category)
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := a.flags("export")
	var ff filterFlags
	ff.register(fs)
	format := fs.String("format", "csv", "csv, pdf or ics")
	out := fs.String("out", "", "output file, defaults to the server supplied name; - writes to stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f := models.ExportFormat(strings.ToLower(*format))
	if !f.Valid() {
		return fmt.Errorf("unsupported format %q", *format)
	}
	filter, err := ff.filter()
	if err != nil {
		return err
	}

	file, err := a.client.Export(ctx, f, filter)
	if err != nil {
		return err
	}
	if *out == "-" {
		_, err := a.out.Write(file.Data)
		return err
	}
	path := *out
	if path == "" {
		path = filepath.Base(file.Filename)
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(a.out, "wrote %d bytes to %s\n", len(file.Data), path)
	return nil
}

func runToken(_ context.Context, a *app, args []string) error {
	fs := a.flags("token")
	subject := fs.String("subject", "", "token subject, e.g. a user name")
	name := fs.String("name", "", "display name claim")
	ttl := fs.Duration("ttl", 0, "lifetime, defaults to JWT_EXPIRATION")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	auth := service.NewAuthService(service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	}, nil)
	token, expires, err := auth.IssueToken(*subject, *name, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, token)
	fmt.Fprintf(a.errOut, "expires %s\n", expires.Local().Format(time.RFC1123))
	return nil
}
