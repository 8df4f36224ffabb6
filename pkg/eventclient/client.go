// Package eventclient is a typed HTTP client for the event API together with
// a local mirror store and the list filters used by interactive front ends.
package eventclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/mini-event-api/internal/dto"
	"github.com/noah-isme/mini-event-api/internal/models"
)

// APIError is the decoded error envelope of a failed request.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("event api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("event api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Page is one page of list results.
type Page struct {
	Events     []models.Event
	Pagination *models.Pagination
	CacheHit   bool
}

// File is a downloaded export.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *APIError              `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

// Client talks to the event API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithToken sends token as a Bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a client for baseURL, which includes the API prefix, e.g. http://localhost:8080/api/v1.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List fetches one page of events matching filter.
func (c *Client) List(ctx context.Context, filter models.EventFilter) (*Page, error) {
	var events []models.Event
	env, err := c.do(ctx, http.MethodGet, "/events", filterQuery(filter), nil, &events)
	if err != nil {
		return nil, err
	}
	page := &Page{Events: events, Pagination: env.Pagination}
	if hit, ok := env.Meta["cache_hit"].(bool); ok {
		page.CacheHit = hit
	}
	return page, nil
}

// Search is List with a mandatory search term over title and notes.
func (c *Client) Search(ctx context.Context, term string, filter models.EventFilter) (*Page, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.New("search term is required")
	}
	filter.Search = term
	return c.List(ctx, filter)
}

// Get fetches one event.
func (c *Client) Get(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if _, err := c.do(ctx, http.MethodGet, eventPath(id), nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create stores a new event.
func (c *Client) Create(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error) {
	var event models.Event
	if _, err := c.do(ctx, http.MethodPost, "/events", nil, req, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id string, req dto.UpdateEventRequest) (*models.Event, error) {
	var event models.Event
	if _, err := c.do(ctx, http.MethodPatch, eventPath(id), nil, req, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ToggleArchive flips the archived flag.
func (c *Client) ToggleArchive(ctx context.Context, id string) (*models.Event, error) {
	return c.eventAction(ctx, http.MethodPut, eventPath(id))
}

// Archive sets the archived flag.
func (c *Client) Archive(ctx context.Context, id string) (*models.Event, error) {
	return c.eventAction(ctx, http.MethodPost, eventPath(id)+"/archive")
}

// Unarchive clears the archived flag.
func (c *Client) Unarchive(ctx context.Context, id string) (*models.Event, error) {
	return c.eventAction(ctx, http.MethodPost, eventPath(id)+"/unarchive")
}

// Delete removes an event.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, eventPath(id), nil, nil, nil)
	return err
}

// SuggestCategory asks the server to classify title and notes.
func (c *Client) SuggestCategory(ctx context.Context, title, notes string) (models.Category, error) {
	q := url.Values{}
	q.Set("title", title)
	if notes != "" {
		q.Set("notes", notes)
	}
	var suggestion dto.CategorySuggestion
	if _, err := c.do(ctx, http.MethodGet, "/category", q, nil, &suggestion); err != nil {
		return "", err
	}
	return suggestion.Category, nil
}

// Export downloads the events matching filter rendered as format.
func (c *Client) Export(ctx context.Context, format models.ExportFormat, filter models.EventFilter) (*File, error) {
	q := filterQuery(filter)
	q.Set("format", string(format))
	resp, err := c.send(ctx, http.MethodGet, "/events/export", q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, data)
	}
	file := &File{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		file.Filename = params["filename"]
	}
	if file.Filename == "" {
		file.Filename = "events." + string(format)
	}
	return file, nil
}

func (c *Client) eventAction(ctx context.Context, method, path string) (*models.Event, error) {
	var event models.Event
	if _, err := c.do(ctx, method, path, nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest interface{}) (*envelope, error) {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, raw)
	}
	if resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return &envelope{}, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if dest != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &env, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeError(status int, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		apiErr := *env.Error
		apiErr.StatusCode = status
		return &apiErr
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(http.StatusText(status))}
}

func eventPath(id string) string {
	return "/events/" + url.PathEscape(id)
}

func filterQuery(f models.EventFilter) url.Values {
	q := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("searchTerm", s)
	}
	if f.Category != "" {
		q.Set("category", string(f.Category))
	}
	switch f.Archived {
	case models.ArchivedInclude:
		q.Set("includeArchived", "true")
	case models.ArchivedOnly:
		q.Set("archived", "true")
	}
	if f.DateFrom != "" {
		q.Set("dateFrom", f.DateFrom)
	}
	if f.DateTo != "" {
		q.Set("dateTo", f.DateTo)
	}
	if f.SortBy != "" {
		q.Set("sortBy", string(f.SortBy))
	}
	if f.SortOrder != "" {
		q.Set("sortOrder", string(f.SortOrder))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}
