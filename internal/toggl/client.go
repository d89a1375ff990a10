package toggl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL    = "https://api.track.toggl.com/api/v9"
	defaultReportsURL = "https://api.track.toggl.com/reports/api/v3"
	reportsPageSize   = 50
)

var ErrWorkspaceNotFound = errors.New("workspace not found")

type Client struct {
	apiToken   string
	baseURL    string
	reportsURL string
	httpClient *http.Client
	cache      *WorkspaceCache
	logger     *zerolog.Logger
	backoff    func(attempt int) time.Duration
}

func NewClient(apiToken, baseURL, reportsURL string, cacheTTL time.Duration, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if reportsURL == "" {
		reportsURL = defaultReportsURL
	}
	return &Client{
		apiToken:   apiToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		reportsURL: strings.TrimRight(reportsURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:   NewWorkspaceCache(cacheTTL),
		logger:  logger,
		backoff: backoff,
	}
}

type response struct {
	body   []byte
	header http.Header
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string, body any) (*response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	c.logger.Debug().Str("method", method).Str("url", rawURL).Msg("toggl API request")

	var resp *http.Response
	maxRetries := 3
	requestStart := time.Now()
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.SetBasicAuth(c.apiToken, "api_token")
		req.Header.Set("Content-Type", "application/json")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				c.logger.Error().Err(err).Str("method", method).Str("url", rawURL).Dur("elapsed", time.Since(requestStart)).Msg("API request transport error")
				return nil, fmt.Errorf("sending request: %w", err)
			}
			c.logger.Debug().Err(err).Str("url", rawURL).Int("attempt", attempt+1).Msg("API request transport error, retrying")
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				c.logger.Error().Str("method", method).Str("url", rawURL).Int("status", resp.StatusCode).Int("attempts", maxRetries+1).Msg("API request failed after retries")
				return nil, fmt.Errorf("API returned status %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.logger.Debug().Str("url", rawURL).Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("API request retryable error")
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug().Str("url", rawURL).Int("status", resp.StatusCode).Int("bytes", len(respBody)).Dur("elapsed", time.Since(requestStart)).Msg("toggl API response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().Str("method", method).Str("url", rawURL).Int("status", resp.StatusCode).Str("response", truncate(string(respBody), 200)).Msg("API request failed")
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	return &response{body: respBody, header: resp.Header}, nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func (c *Client) GetWorkspaces(ctx context.Context) ([]Workspace, error) {
	if cached := c.cache.Get(); cached != nil {
		return cached, nil
	}

	resp, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/me/workspaces", nil)
	if err != nil {
		return nil, fmt.Errorf("getting workspaces: %w", err)
	}

	var workspaces []Workspace
	if err := json.Unmarshal(resp.body, &workspaces); err != nil {
		return nil, fmt.Errorf("parsing workspaces response: %w", err)
	}

	c.cache.Set(workspaces)
	return workspaces, nil
}

// ResolveWorkspaceID finds the workspace with the given name. An exact match
// wins over a case-insensitive one.
func (c *Client) ResolveWorkspaceID(ctx context.Context, name string) (int64, error) {
	workspaces, err := c.GetWorkspaces(ctx)
	if err != nil {
		return 0, err
	}
	for _, w := range workspaces {
		if w.Name == name {
			return w.ID, nil
		}
	}
	for _, w := range workspaces {
		if strings.EqualFold(w.Name, name) {
			return w.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrWorkspaceNotFound, name)
}

// GetTimeEntries lists the user's entries starting in [start, end).
func (c *Client) GetTimeEntries(ctx context.Context, start, end time.Time) ([]TimeEntry, error) {
	q := url.Values{}
	q.Set("start_date", start.UTC().Format(time.RFC3339))
	q.Set("end_date", end.UTC().Format(time.RFC3339))

	resp, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/me/time_entries?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("getting time entries: %w", err)
	}

	var entries []TimeEntry
	if err := json.Unmarshal(resp.body, &entries); err != nil {
		return nil, fmt.Errorf("parsing time entries response: %w", err)
	}
	return entries, nil
}

// FetchRange walks [start, end) in windows of windowDays, dropping duplicate
// entry ids returned by adjacent windows.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time, windowDays int) ([]TimeEntry, error) {
	if windowDays <= 0 {
		windowDays = 60
	}
	if !end.After(start) {
		return nil, nil
	}

	seen := make(map[int64]bool)
	var all []TimeEntry
	for from := start; from.Before(end); {
		to := from.AddDate(0, 0, windowDays)
		if to.After(end) {
			to = end
		}
		entries, err := c.GetTimeEntries(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetching %s..%s: %w", from.Format(time.DateOnly), to.Format(time.DateOnly), err)
		}
		c.logger.Debug().Time("from", from).Time("to", to).Int("entries", len(entries)).Msg("fetched window")
		for _, e := range entries {
			if e.ID != 0 && seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			all = append(all, e)
		}
		from = to
	}
	return all, nil
}

func (c *Client) GetTags(ctx context.Context, workspaceID int64) ([]Tag, error) {
	path := fmt.Sprintf("%s/workspaces/%d/tags", c.baseURL, workspaceID)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting tags: %w", err)
	}

	var tags []Tag
	if err := json.Unmarshal(resp.body, &tags); err != nil {
		return nil, fmt.Errorf("parsing tags response: %w", err)
	}
	return tags, nil
}

// SearchTimeEntries pages through the detailed report for the inclusive date
// range, following the X-Next-ID / X-Next-Row-Number cursor.
func (c *Client) SearchTimeEntries(ctx context.Context, workspaceID int64, start, end time.Time) ([]ReportRow, error) {
	path := fmt.Sprintf("%s/workspace/%d/search/time_entries", c.reportsURL, workspaceID)
	req := searchRequest{
		StartDate: start.Format(time.DateOnly),
		EndDate:   end.Format(time.DateOnly),
		PageSize:  reportsPageSize,
	}

	var all []ReportRow
	for page := 1; ; page++ {
		resp, err := c.doRequest(ctx, http.MethodPost, path, req)
		if err != nil {
			return nil, fmt.Errorf("searching time entries (page %d): %w", page, err)
		}

		var rows []ReportRow
		if err := json.Unmarshal(resp.body, &rows); err != nil {
			return nil, fmt.Errorf("parsing report page %d: %w", page, err)
		}
		all = append(all, rows...)

		nextID, idErr := strconv.ParseInt(resp.header.Get("X-Next-ID"), 10, 64)
		nextRow, rowErr := strconv.ParseInt(resp.header.Get("X-Next-Row-Number"), 10, 64)
		if len(rows) == 0 || idErr != nil || rowErr != nil {
			break
		}
		req.FirstID = nextID
		req.FirstRowNumber = nextRow
	}
	return all, nil
}

// FetchReport pulls the detailed report for [start, end] and resolves tag ids
// to names.
func (c *Client) FetchReport(ctx context.Context, workspaceID int64, start, end time.Time) ([]TimeEntry, error) {
	tags, err := c.GetTags(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(tags))
	for _, t := range tags {
		names[t.ID] = t.Name
	}

	rows, err := c.SearchTimeEntries(ctx, workspaceID, start, end)
	if err != nil {
		return nil, err
	}
	entries := Flatten(rows, names)
	for i := range entries {
		entries[i].WorkspaceID = workspaceID
	}
	return entries, nil
}
