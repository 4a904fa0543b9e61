// Package strava is a small client for the Strava v3 REST API. Every call
// takes the bearer token explicitly; token lifecycle lives in the oauth
// package.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	httputil "github.com/stravabot/server/pkg/infrastructure/http"
	"github.com/stravabot/server/pkg/observability"
)

const (
	DefaultBaseURL = "https://www.strava.com/api/v3"
	DefaultTimeout = 10 * time.Second

	// MaxPerPage is the largest page Strava serves for athlete activities.
	MaxPerPage = 200
)

// Client is an API client for Strava
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout bounds each individual request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a new Strava API client
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an authenticated GET and decodes the JSON body into out.
// The per-call timeout covers the whole exchange including the body read.
func (c *Client) doRequest(ctx context.Context, operation, token, path string, out interface{}) (err error) {
	started := time.Now()
	status := "error"
	defer func() { observability.ObserveUpstream(operation, status, started) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListRecent retrieves the athlete's most recent activities, newest first.
func (c *Client) ListRecent(ctx context.Context, token string, count int) ([]SummaryActivity, error) {
	if count <= 0 {
		count = 1
	}
	if count > MaxPerPage {
		count = MaxPerPage
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(count))
	q.Set("page", "1")

	var activities []SummaryActivity
	if err := c.doRequest(ctx, "list_activities", token, "/athlete/activities?"+q.Encode(), &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetDetail retrieves a single activity including splits_metric.
func (c *Client) GetDetail(ctx context.Context, token string, activityID int64) (*DetailedActivity, error) {
	path := fmt.Sprintf("/activities/%d?include_all_efforts=false", activityID)

	var activity DetailedActivity
	if err := c.doRequest(ctx, "get_activity", token, path, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListLaps retrieves the laps recorded for an activity.
func (c *Client) ListLaps(ctx context.Context, token string, activityID int64) ([]Lap, error) {
	path := fmt.Sprintf("/activities/%d/laps", activityID)

	var laps []Lap
	if err := c.doRequest(ctx, "list_laps", token, path, &laps); err != nil {
		return nil, err
	}
	return laps, nil
}
