// Package jira fetches issues from the Jira Cloud REST API and normalizes
// them into domain.IssueRecord values.
package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Source is the issue retrieval collaborator used by the workflow.
type Source interface {
	FetchIssue(ctx context.Context, key string) (domain.IssueRecord, error)
	TestConnection(ctx context.Context) domain.ConnectionResult
}

// Ensure Client implements Source.
var _ Source = (*Client)(nil)

// Client talks to one Jira site using basic auth (email + API token).
type Client struct {
	baseURL       string
	email         string
	apiToken      string
	criteriaField string
	httpClient    *http.Client
}

// NewClient creates a client for the site in settings. criteriaField is an
// optional custom field id (e.g. customfield_10020) holding acceptance
// criteria.
func NewClient(settings domain.JiraSettings, criteriaField string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       siteURL(settings.Domain),
		email:         settings.Email,
		apiToken:      settings.APIToken,
		criteriaField: criteriaField,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// siteURL accepts a bare domain ("acme.atlassian.net") or a full URL.
func siteURL(domainOrURL string) string {
	s := strings.TrimSpace(domainOrURL)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return strings.TrimSuffix(s, "/")
}

type issueResponse struct {
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type namedField struct {
	Name string `json:"name"`
}

type myselfResponse struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// FetchIssue retrieves the issue identified by key. No caching is done; every
// call hits the tracker.
func (c *Client) FetchIssue(ctx context.Context, key string) (domain.IssueRecord, error) {
	key, err := domain.NormalizeIssueKey(key)
	if err != nil {
		return domain.IssueRecord{}, err
	}

	fields := []string{"summary", "description", "priority", "issuetype"}
	if c.criteriaField != "" {
		fields = append(fields, c.criteriaField)
	}
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=%s",
		c.baseURL, url.PathEscape(key), url.QueryEscape(strings.Join(fields, ",")))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return domain.IssueRecord{}, err
	}
	switch {
	case status == http.StatusNotFound:
		return domain.IssueRecord{}, domain.Errorf(domain.KindIssueNotFound, "issue %s not found", key)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.IssueRecord{}, domain.Errorf(domain.KindTrackerAuthError, "jira rejected credentials [%d]", status)
	case status != http.StatusOK:
		return domain.IssueRecord{}, domain.Errorf(domain.KindTrackerUnreachable, "jira API error [%d]: %s", status, snippet(body))
	}

	var resp issueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.IssueRecord{}, domain.WrapError(domain.KindTrackerUnreachable, "malformed issue response", err)
	}
	return c.normalize(key, resp), nil
}

func (c *Client) normalize(key string, resp issueResponse) domain.IssueRecord {
	record := domain.IssueRecord{
		Key:         strings.ToUpper(resp.Key),
		Summary:     FlattenField(resp.Fields["summary"]),
		Description: FlattenField(resp.Fields["description"]),
		Priority:    nameOf(resp.Fields["priority"], "Medium"),
		IssueType:   nameOf(resp.Fields["issuetype"], "Task"),
	}
	if record.Key == "" {
		record.Key = key
	}
	if c.criteriaField != "" {
		record.AcceptanceCriteria = FlattenField(resp.Fields[c.criteriaField])
	}
	if record.AcceptanceCriteria == "" {
		record.AcceptanceCriteria = ExtractAcceptanceCriteria(record.Description)
	}
	if record.AcceptanceCriteria == "" {
		record.AcceptanceCriteria = NotSpecified
	}
	return record
}

func nameOf(raw json.RawMessage, fallback string) string {
	var f namedField
	if len(raw) == 0 || json.Unmarshal(raw, &f) != nil || f.Name == "" {
		return fallback
	}
	return f.Name
}

// TestConnection checks credentials against /myself. Failures are reported in
// the result rather than as an error.
func (c *Client) TestConnection(ctx context.Context) domain.ConnectionResult {
	body, status, err := c.get(ctx, c.baseURL+"/rest/api/3/myself")
	if err != nil {
		return domain.ConnectionResult{
			Status:  domain.ConnectionFailed,
			Error:   err.Error(),
			Message: "Cannot reach Jira domain. Check URL.",
		}
	}
	if status != http.StatusOK {
		return domain.ConnectionResult{
			Status:  domain.ConnectionFailed,
			Error:   fmt.Sprintf("HTTP %d: %s", status, snippet(body)),
			Message: "Jira connection failed",
		}
	}
	var me myselfResponse
	_ = json.Unmarshal(body, &me)
	if me.DisplayName == "" {
		me.DisplayName = "Unknown"
	}
	return domain.ConnectionResult{
		Status:  domain.ConnectionConnected,
		User:    me.DisplayName,
		Message: "Jira connection successful",
	}
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, domain.WrapError(domain.KindConfigInvalid, "invalid jira url", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, domain.WrapError(domain.KindTimeout, "jira request timed out", err)
		}
		return nil, 0, domain.WrapError(domain.KindTrackerUnreachable, "failed to reach jira", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, domain.WrapError(domain.KindTrackerUnreachable, "failed to read jira response", err)
	}
	return body, resp.StatusCode, nil
}

// setHeaders sets auth and content headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.email != "" || c.apiToken != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.email + ":" + c.apiToken))
		req.Header.Set("Authorization", "Basic "+creds)
	}
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
