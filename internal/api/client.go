// Package api is the HTTP client for the tutoring backend.
package api

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
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// Client makes REST calls to the tutoring backend.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client targeting baseURL (e.g. "http://localhost:8001").
// A non-empty token is sent as "Authorization: Token <token>".
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// Problem fetches GET /api/problem-by-topic/.
func (c *Client) Problem(ctx context.Context, topic, difficulty string) (*Problem, error) {
	q := url.Values{}
	q.Set("topic", topic)
	q.Set("difficulty", difficulty)
	var out struct {
		Problem
		Error string `json:"error"`
	}
	if err := c.get(ctx, "/api/problem-by-topic/?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &ServerError{Status: http.StatusOK, Message: out.Error}
	}
	p := out.Problem
	return &p, nil
}

// Chat sends POST /api/chat/.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.post(ctx, "/api/chat/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Guide sends POST /api/guide-me/.
func (c *Client) Guide(ctx context.Context, req GuideRequest) (string, error) {
	var out GuideResponse
	if err := c.post(ctx, "/api/guide-me/", req, &out); err != nil {
		return "", err
	}
	return out.Guide, nil
}

// Evaluate sends POST /api/evaluate-code/.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (string, error) {
	var out EvaluateResponse
	if err := c.post(ctx, "/api/evaluate-code/", req, &out); err != nil {
		return "", err
	}
	return out.Feedback, nil
}

// Ping fetches GET /api/ping/.
func (c *Client) Ping(ctx context.Context) error {
	var out PingResponse
	if err := c.get(ctx, "/api/ping/", &out); err != nil {
		return err
	}
	if out.Message != "pong" {
		return &ServerError{Status: http.StatusOK, Message: fmt.Sprintf("unexpected ping reply %q", out.Message)}
	}
	return nil
}

// History fetches GET /api/chat/history/. limit <= 0 uses the server default.
func (c *Client) History(ctx context.Context, limit int) ([]ChatRecord, error) {
	path := "/api/chat/history/"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []ChatRecord
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Problems fetches GET /api/problems/, optionally filtered by topic.
func (c *Client) Problems(ctx context.Context, topic string) ([]ProblemSummary, error) {
	path := "/api/problems/"
	if topic != "" {
		path += "?topic=" + url.QueryEscape(topic)
	}
	var out []ProblemSummary
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Op: "GET " + path, Err: err}
	}
	return c.do(req, "GET "+path, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	op := "POST " + path
	data, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb ErrorBody
		_ = json.Unmarshal(body, &eb)
		return &ServerError{Status: resp.StatusCode, Message: eb.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
}
