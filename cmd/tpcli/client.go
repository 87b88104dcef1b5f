package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Client is an HTTP client for the test plan API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a failed API call.
type APIError struct {
	Status int
	Info   domain.ErrorInfo
}

func (e *APIError) Error() string {
	if e.Info.Kind == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Info.Kind, e.Info.Message)
}

// FetchIssue fetches one issue through the server.
func (c *Client) FetchIssue(ctx context.Context, key string) (domain.IssueRecord, error) {
	var issue domain.IssueRecord
	err := c.doJSON(ctx, http.MethodPost, "/api/jira/issue/"+url.PathEscape(key), nil, &issue)
	return issue, err
}

// Generate generates a test plan for the issue key.
func (c *Client) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResponse, error) {
	var resp domain.GenerateResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/generate/test-plan", req, &resp)
	return resp, err
}

// History lists the generation history.
func (c *Client) History(ctx context.Context, newestFirst, includeFailed bool) (domain.HistoryResponse, error) {
	q := url.Values{}
	if newestFirst {
		q.Set("order", "newest")
	}
	if includeFailed {
		q.Set("include_failed", "true")
	}
	path := "/api/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp domain.HistoryResponse
	err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Export downloads a rendered artifact and returns its bytes and the
// server-suggested filename.
func (c *Client) Export(ctx context.Context, id, format string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/export/"+url.PathEscape(id)+"/"+url.PathEscape(format), nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read export: %w", err)
	}
	return data, filenameOf(resp.Header.Get("Content-Disposition")), nil
}

// Watch streams history messages until ctx ends or the server closes the
// connection. handler is called for every message.
func (c *Client) Watch(ctx context.Context, handler func(raw []byte) error) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/history/stream"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		if err := handler(data); err != nil {
			return err
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do sends the request and converts non-2xx answers into *APIError.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{Status: resp.StatusCode}
	var errResp domain.ErrorResponse
	if data, err := io.ReadAll(resp.Body); err == nil && json.Unmarshal(data, &errResp) == nil {
		apiErr.Info = errResp.Error
	}
	return nil, apiErr
}

func filenameOf(disposition string) string {
	const marker = "filename="
	i := strings.Index(disposition, marker)
	if i < 0 {
		return ""
	}
	return strings.Trim(disposition[i+len(marker):], `"`)
}
