// Package content is a client for the WordPress REST API routes that list and
// fetch entries of a single post type.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Unbounded requests every entry, paging through the collection.
const Unbounded = -1

// maxPerPage is the server-side cap on per_page.
const maxPerPage = 100

// maxBodyBytes bounds a single response body.
const maxBodyBytes = 32 << 20

// fields restricts responses to what the picker uses.
const fields = "id,title,content"

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("content: not found")

// Status filters entries by publication status.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPublish Status = "publish"
	StatusAny     Status = "any"
)

// ParseStatus accepts draft, publish (or published) and any.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "draft":
		return StatusDraft, nil
	case "publish", "published", "":
		return StatusPublish, nil
	case "any":
		return StatusAny, nil
	default:
		return "", fmt.Errorf("invalid status %q (must be draft, publish or any)", s)
	}
}

// Rendered is the {"rendered": "..."} wrapper used for titles and content.
type Rendered struct {
	Rendered string `json:"rendered"`
}

// Item is one entry as returned by the API.
type Item struct {
	ID      int64    `json:"id"`
	Title   Rendered `json:"title"`
	Content Rendered `json:"content"`
}

// Query selects which entries List returns.
type Query struct {
	Status   Status
	PageSize int // Positive, or Unbounded
}

// APIError is a non-2xx response. Code and Message come from the API's JSON
// error body when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("content api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("content api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Is makes 404 responses match ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to one post type on one site.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	username   string
	password   string
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBasicAuth authenticates with an application password, needed to list
// drafts.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithRateLimit paces requests. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for {baseURL}/wp-json/wp/v2/{kind}.
func NewClient(baseURL, kind string, opts ...ClientOption) (*Client, error) {
	if kind == "" {
		return nil, errors.New("content: kind is required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("content: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("content: base url must be http or https, got %q", baseURL)
	}

	c := &Client{
		endpoint:   base.JoinPath("wp-json", "wp", "v2", kind),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 4),
		userAgent:  "spoiler-picker",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List returns entries in server order. With Unbounded it follows
// X-WP-TotalPages until the collection is exhausted; a page size above the
// server cap is met by fetching several pages.
func (c *Client) List(ctx context.Context, q Query) ([]Item, error) {
	perPage := maxPerPage
	if q.PageSize > 0 && q.PageSize < maxPerPage {
		perPage = q.PageSize
	}
	status := q.Status
	if status == "" {
		status = StatusPublish
	}

	items := []Item{}
	for page := 1; ; page++ {
		batch, totalPages, err := c.listPage(ctx, status, perPage, page)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)

		if q.PageSize > 0 && len(items) >= q.PageSize {
			return items[:q.PageSize], nil
		}
		if len(batch) == 0 || page >= totalPages {
			return items, nil
		}
	}
}

// Get fetches a single entry.
func (c *Client) Get(ctx context.Context, id int64) (Item, error) {
	u := c.endpoint.JoinPath(strconv.FormatInt(id, 10))
	u.RawQuery = url.Values{"_fields": {fields}}.Encode()

	var item Item
	if _, err := c.getJSON(ctx, u, &item); err != nil {
		return Item{}, err
	}
	return item, nil
}

func (c *Client) listPage(ctx context.Context, status Status, perPage, page int) ([]Item, int, error) {
	u := *c.endpoint
	u.RawQuery = url.Values{
		"status":   {string(status)},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
		"_fields":  {fields},
	}.Encode()

	var items []Item
	header, err := c.getJSON(ctx, &u, &items)
	if err != nil {
		return nil, 0, err
	}

	totalPages := 1
	if v := header.Get("X-WP-TotalPages"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			totalPages = n
		}
	}
	return items, totalPages, nil
}

func (c *Client) getJSON(ctx context.Context, u *url.URL, out any) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("content: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content: GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wpErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.NewDecoder(body).Decode(&wpErr) == nil {
			apiErr.Code = wpErr.Code
			apiErr.Message = wpErr.Message
		}
		return nil, apiErr
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return nil, fmt.Errorf("content: decode %s: %w", u.Path, err)
	}
	return resp.Header, nil
}
