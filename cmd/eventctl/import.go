package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/mini-event-api/internal/dto"
)

type importEvent struct {
	Title    string  `yaml:"title"`
	Date     string  `yaml:"date"`
	Time     string  `yaml:"time"`
	Notes    *string `yaml:"notes"`
	Category string  `yaml:"category"`
	Archived bool    `yaml:"archived"`
}

type importFile struct {
	Events []importEvent `yaml:"events"`
}

// parseImport accepts either a top level list or a document with an events key.
func parseImport(r io.Reader) ([]importEvent, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("import file is empty")
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, errors.New("import file is empty")
	}

	var events []importEvent
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	case yaml.MappingNode:
		var file importFile
		if err := doc.Decode(&file); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		events = file.Events
	default:
		return nil, errors.New("expected a list of events or an events key")
	}
	if len(events) == 0 {
		return nil, errors.New("no events found")
	}
	return events, nil
}

func runImport(ctx context.Context, a *app, args []string) error {
	fs := a.flags("import")
	path := fs.String("file", "events.yaml", "YAML file to import")
	dryRun := fs.Bool("dry-run", false, "parse and print without creating")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	items, err := parseImport(f)
	if err != nil {
		return err
	}

	var failed int
	for i, item := range items {
		if *dryRun {
			fmt.Fprintf(a.out, "%d\t%s\t%s\n", i+1, a.dates.FormatDateTime(item.Date, item.Time), item.Title)
			continue
		}
		event, err := a.client.Create(ctx, dto.CreateEventRequest{
			Title:    item.Title,
			Date:     item.Date,
			Time:     item.Time,
			Notes:    item.Notes,
			Category: item.Category,
		})
		if err != nil {
			failed++
			fmt.Fprintf(a.errOut, "event %d (%q): %v\n", i+1, item.Title, err)
			continue
		}
		if item.Archived {
			if _, err := a.client.Archive(ctx, event.ID); err != nil {
				failed++
				fmt.Fprintf(a.errOut, "archive %s: %v\n", event.ID, err)
				continue
			}
		}
		fmt.Fprintf(a.out, "created %s %s\n", event.ID, event.Title)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d events failed", failed, len(items))
	}
	return nil
}
