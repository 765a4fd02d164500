// Package client provides a Go SDK for the sqlgym API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/terra-clan/sqlgym/internal/models"
)

// Client is a sqlgym API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithToken sets a previously issued bearer token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a new sqlgym client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token currently in use.
func (c *Client) Token() string {
	return c.token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is returned when the server responds with a failure envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// do performs a request and decodes the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, username, password, name string) (*models.Profile, error) {
	var profile models.Profile
	req := models.RegisterRequest{Username: username, Password: password, Name: name}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Login exchanges credentials for a bearer token and stores it on the
// client for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp models.TokenResponse
	req := models.TokenRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/token", req, &resp); err != nil {
		return err
	}
	c.token = resp.AccessToken
	return nil
}

// TaskList is the catalog listing response.
type TaskList struct {
	Tasks []models.TaskSummary `json:"tasks"`
	Total int                  `json:"total"`
}

// ListTasks returns all tasks in the catalog.
func (c *Client) ListTasks(ctx context.Context) (*TaskList, error) {
	var list TaskList
	if err := c.do(ctx, http.MethodGet, "/api/v1/task/all", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// StartTask opens a new practice session for the given task.
func (c *Client) StartTask(ctx context.Context, taskID string) (*models.SessionResponse, error) {
	var session models.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/task/start/"+taskID, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession returns the current state of a session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.SessionResponse, error) {
	var session models.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/task/"+sessionID, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Execute runs an SQL query inside the session sandbox.
func (c *Client) Execute(ctx context.Context, sessionID, query string) (*models.ExecuteResponse, error) {
	var result models.ExecuteResponse
	req := models.ExecuteRequest{Query: query}
	if err := c.do(ctx, http.MethodPost, "/api/v1/task/"+sessionID+"/execute", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SchemaView is the sandbox visualization response.
type SchemaView struct {
	Tables []models.TableSchema `json:"tables"`
	Total  int                  `json:"total"`
}

// Visualize returns the schema and sample rows of the session sandbox.
func (c *Client) Visualize(ctx context.Context, sessionID string) (*SchemaView, error) {
	var view SchemaView
	if err := c.do(ctx, http.MethodGet, "/api/v1/task/"+sessionID+"/visualize", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Solve submits an answer for the session.
func (c *Client) Solve(ctx context.Context, sessionID, answer string) (*models.SolveResponse, error) {
	var resp models.SolveResponse
	req := models.SolveRequest{Answer: answer}
	if err := c.do(ctx, http.MethodPost, "/api/v1/task/solve/"+sessionID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/user/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies a partial profile edit.
func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodPatch, "/api/v1/user/profile", update, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Progress returns a user's solving progress by username.
func (c *Client) Progress(ctx context.Context, username string) (*models.Progress, error) {
	var progress models.Progress
	if err := c.do(ctx, http.MethodGet, "/api/v1/user/progress/"+username, nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// Health reports whether the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
