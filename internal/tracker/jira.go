package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/damsaniajay/qaflow/internal/types"
)

const (
	// searchPageSize caps how many issues one project-scope search returns
	searchPageSize = 100

	// linkTypeBlocks is the Jira link type carrying test dependencies. A link
	// with an inwardIssue reads "is blocked by": the inward issue must run first.
	linkTypeBlocks = "Blocks"
)

// JiraConfig holds the connection settings for a Jira instance
type JiraConfig struct {
	BaseURL string // e.g. https://your-domain.atlassian.net
	User    string // account email for basic auth
	Token   string // API token
	Project string // project key scoping every query

	// RequestsPerSecond throttles outbound API calls (default 5)
	RequestsPerSecond float64
	// Timeout bounds a single HTTP request (default 30s)
	Timeout time.Duration
}

// JiraClient is a Source backed by the Jira REST API v2
type JiraClient struct {
	cfg     JiraConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewJiraClient validates the config and builds a client. It does not touch
// the network; use Ping to verify connectivity and credentials.
func NewJiraClient(cfg JiraConfig) (*JiraClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}
	if cfg.User == "" || cfg.Token == "" {
		return nil, fmt.Errorf("jira credentials are required")
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("jira project key is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &JiraClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// Ping verifies connectivity and credentials against the tracker
func (c *JiraClient) Ping(ctx context.Context) error {
	body, status, err := c.do(ctx, "GET", "/rest/api/2/myself", nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("jira authentication failed (%d)", status)
	}
	if status != http.StatusOK {
		return apiError(status, body)
	}
	return nil
}

// GetTestCase fetches a single issue and maps it to a TestCase
func (c *JiraClient) GetTestCase(ctx context.Context, key string) (*types.TestCase, error) {
	path := fmt.Sprintf("/rest/api/2/issue/%s?fields=summary,status,description,issuelinks", url.PathEscape(key))
	body, status, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("test case %s: %w", key, ErrNotFound)
	}
	if status != http.StatusOK {
		return nil, apiError(status, body)
	}
	tc := parseIssue(gjson.ParseBytes(body))
	return &tc, nil
}

// ListTestCases searches the configured project, optionally narrowed to one
// tracker status
func (c *JiraClient) ListTestCases(ctx context.Context, statusFilter types.Status) ([]types.TestCase, error) {
	jql := fmt.Sprintf("project = %q ORDER BY created DESC", c.cfg.Project)
	if statusFilter != "" {
		jql = fmt.Sprintf("project = %q AND status = %q ORDER BY created DESC", c.cfg.Project, string(statusFilter))
	}
	payload := map[string]any{
		"jql":        jql,
		"startAt":    0,
		"maxResults": searchPageSize,
		"fields":     []string{"summary", "status", "description", "issuelinks"},
	}
	body, status, err := c.do(ctx, "POST", "/rest/api/2/search", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, body)
	}

	var cases []types.TestCase
	for _, issue := range gjson.GetBytes(body, "issues").Array() {
		cases = append(cases, parseIssue(issue))
	}
	return cases, nil
}

// SetStatus transitions an issue to the named status. Jira exposes status
// changes only through workflow transitions, so this looks up the available
// transitions and picks the one landing on the requested status.
func (c *JiraClient) SetStatus(ctx context.Context, key string, target types.Status) error {
	path := fmt.Sprintf("/rest/api/2/issue/%s/transitions", url.PathEscape(key))
	body, status, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("test case %s: %w", key, ErrNotFound)
	}
	if status != http.StatusOK {
		return apiError(status, body)
	}

	var transitionID string
	for _, tr := range gjson.GetBytes(body, "transitions").Array() {
		if strings.EqualFold(tr.Get("to.name").String(), string(target)) {
			transitionID = tr.Get("id").String()
			break
		}
	}
	if transitionID == "" {
		return fmt.Errorf("no transition to %q available for %s", target, key)
	}

	payload := map[string]any{"transition": map[string]string{"id": transitionID}}
	body, status, err = c.do(ctx, "POST", path, payload)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return apiError(status, body)
	}
	return nil
}

// do issues one rate-limited request and returns the body and status code.
// A 429 is retried once after honoring Retry-After; every other status is
// the caller's to interpret.
func (c *JiraClient) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var bodyJSON []byte
	if payload != nil {
		var err error
		bodyJSON, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling request: %w", err)
		}
	}

	body, status, header, err := c.doOnce(ctx, method, path, bodyJSON)
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusTooManyRequests {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(retryAfter(header)):
		}
		body, status, _, err = c.doOnce(ctx, method, path, bodyJSON)
		if err != nil {
			return nil, 0, err
		}
	}
	return body, status, nil
}

func (c *JiraClient) doOnce(ctx context.Context, method, path string, bodyJSON []byte) ([]byte, int, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, "", err
	}

	var reqBody io.Reader
	if bodyJSON != nil {
		reqBody = bytes.NewReader(bodyJSON)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, 0, "", fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if bodyJSON != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("calling jira: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

// retryAfter parses a Retry-After header value in seconds, bounded to keep
// one throttled call from stalling a request for minutes
func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 1 {
		return 2 * time.Second
	}
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

// parseIssue maps one Jira issue JSON document to a TestCase
func parseIssue(issue gjson.Result) types.TestCase {
	tc := types.TestCase{
		Key:    issue.Get("key").String(),
		Title:  issue.Get("fields.summary").String(),
		Status: types.ParseStatus(issue.Get("fields.status.name").String()),
		Steps:  ParseSteps(issue.Get("fields.description").String()),
	}
	for _, link := range issue.Get("fields.issuelinks").Array() {
		if !strings.EqualFold(link.Get("type.name").String(), linkTypeBlocks) {
			continue
		}
		if inward := link.Get("inwardIssue.key"); inward.Exists() {
			tc.Dependencies = append(tc.Dependencies, inward.String())
		}
	}
	return tc
}

// apiError surfaces Jira's error payload ({"errorMessages": [...]}) when
// present, falling back to the bare status code
func apiError(status int, body []byte) error {
	msgs := gjson.GetBytes(body, "errorMessages").Array()
	if len(msgs) > 0 {
		parts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			parts = append(parts, m.String())
		}
		return fmt.Errorf("jira returned %d: %s", status, strings.Join(parts, "; "))
	}
	return fmt.Errorf("jira returned %d", status)
}
