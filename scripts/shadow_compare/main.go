package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type target struct {
	Method   string `yaml:"method"`
	Path     string `yaml:"path"`
	Critical bool   `yaml:"critical"`
}

type targetFile struct {
	Targets []target `yaml:"targets"`
}

// defaultTargets are the read-only routes the legacy backend also serves.
var defaultTargets = []target{
	{Method: http.MethodGet, Path: "/api/v1/events", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/events?searchTerm=meeting", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/events?category=Work&includeArchived=true", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/events?page=2&limit=5"},
	{Method: http.MethodGet, Path: "/api/v1/category?title=Team%20meeting"},
}

// volatileFields never match between two independently seeded backends.
var volatileFields = map[string]bool{
	"createdAt": true, "updatedAt": true, "__v": true, "meta": true,
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:5000", "Legacy API base URL")
	flag.StringVar(&targetsPath, "targets", "", "YAML targets file, defaults to the built-in event routes")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets := defaultTargets
	if targetsPath != "" {
		loaded, err := loadTargets(targetsPath)
		if err != nil {
			log.Fatalf("failed to load targets: %v", err)
		}
		targets = loaded
	}

	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	for _, t := range targets {
		comp := compareTarget(context.Background(), client, goBase, legacyBase, t)
		switch {
		case comp.Error != nil && t.Critical:
			breaking++
		case comp.Error == nil && (!comp.StatusMatch || !comp.BodyMatch):
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(os.Stdout, comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func compareTarget(ctx context.Context, client *http.Client, goBase, legacyBase string, tgt target) comparison {
	comp := comparison{Target: tgt}

	goStatus, goBody, goDur, err := fetch(ctx, client, goBase, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("go request failed: %w", err)
		return comp
	}
	legacyStatus, legacyBody, legacyDur, err := fetch(ctx, client, legacyBase, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", err)
		return comp
	}

	comp.GoStatus, comp.DurationGo = goStatus, goDur
	comp.LegacyStatus, comp.DurationLegacy = legacyStatus, legacyDur
	comp.StatusMatch = goStatus == legacyStatus
	comp.BodyMatch = bodiesEqual(goBody, legacyBody)
	return comp
}

func fetch(ctx context.Context, client *http.Client, base string, tgt target) (int, []byte, time.Duration, error) {
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// bodiesEqual compares a Go envelope with a legacy payload after both are
// reduced to the same canonical shape.
func bodiesEqual(goBody, legacyBody []byte) bool {
	if bytes.Equal(bytes.TrimSpace(goBody), bytes.TrimSpace(legacyBody)) {
		return true
	}

	var g, l interface{}
	if err := json.Unmarshal(goBody, &g); err != nil {
		return false
	}
	if err := json.Unmarshal(legacyBody, &l); err != nil {
		return false
	}
	return reflect.DeepEqual(canonical(unwrapGo(g)), canonical(unwrapLegacy(l)))
}

// unwrapGo keeps data and the pagination totals of {data, pagination, meta}.
func unwrapGo(v interface{}) interface{} {
	env, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	out := map[string]interface{}{"data": env["data"]}
	if p, ok := env["pagination"].(map[string]interface{}); ok {
		out["total"] = p["total"]
	}
	return out
}

// unwrapLegacy maps {meta, result} and bare documents onto the Go shape.
func unwrapLegacy(v interface{}) interface{} {
	env, ok := v.(map[string]interface{})
	if !ok {
		return map[string]interface{}{"data": v}
	}
	if result, ok := env["result"]; ok {
		out := map[string]interface{}{"data": result}
		if meta, ok := env["meta"].(map[string]interface{}); ok {
			out["total"] = meta["total"]
		}
		return out
	}
	if data, ok := env["data"]; ok {
		return map[string]interface{}{"data": data}
	}
	return map[string]interface{}{"data": env}
}

func canonical(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v2 := range val {
			if volatileFields[k] {
				continue
			}
			if k == "_id" {
				k = "id"
			}
			out[k] = canonical(v2)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, v2 := range val {
			out[i] = canonical(v2)
		}
		return out
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
	}
	return v
}

func printReport(w io.Writer, results []comparison) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Target.Critical && !results[j].Target.Critical
	})
	fmt.Fprintln(w, "Shadow Compare Report")
	fmt.Fprintln(w, "======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Fprintf(w, "  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Fprintf(w, "  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Error)
		} else {
			fmt.Fprintf(w, "  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
