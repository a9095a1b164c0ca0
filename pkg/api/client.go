// Package api is the typed HTTP client for the remote catalog and auth
// exchange. It attaches the bearer credential supplied by a CredentialSource
// and maps failures onto structured error codes. It never retries; the
// stores that call it treat local state as authoritative regardless of the
// outcome here.
package api

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

	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
)

// CredentialSource supplies the current bearer credential. Only the identity
// context mutates the credential; everyone else reads it through this.
type CredentialSource interface {
	Credential() string
}

// Client talks to the remote catalog and auth endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New constructs a Client for the given backend base URL.
func New(baseURL string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		creds:   creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("password", password)

	var tok TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login?"+q.Encode(), nil, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, email, password, name string) (*UserRecord, error) {
	var user UserRecord
	err := c.do(ctx, http.MethodPost, "/auth/register", RegisterRequest{
		Email:    email,
		Password: password,
		Name:     name,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Me fetches the principal record for the current credential.
func (c *Client) Me(ctx context.Context) (*UserRecord, error) {
	var user UserRecord
	if err := c.do(ctx, http.MethodGet, "/auth/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListProjects returns the principal's projects.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectRecord, error) {
	var projects []ProjectRecord
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a project; the backend assigns the id.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*ProjectRecord, error) {
	var project ProjectRecord
	err := c.do(ctx, http.MethodPost, "/projects", CreateProjectRequest{
		Name:        name,
		Description: description,
	}, &project)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, projectID string) (*ProjectRecord, error) {
	var project ProjectRecord
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject deletes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(projectID), nil, nil)
}

// ListFiles returns a project's files.
func (c *Client) ListFiles(ctx context.Context, projectID string) ([]FileRecord, error) {
	var files []FileRecord
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/files", nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// CreateFile creates a file under a project; the backend assigns the id.
func (c *Client) CreateFile(ctx context.Context, projectID string, req CreateFileRequest) (*FileRecord, error) {
	var file FileRecord
	if err := c.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/files", req, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// UpdateFileContent replaces a file's content.
func (c *Client) UpdateFileContent(ctx context.Context, fileID, content string) error {
	return c.do(ctx, http.MethodPut, "/files/"+url.PathEscape(fileID)+"/content", map[string]string{
		"content": content,
	}, nil)
}

// RenameFile renames a file.
func (c *Client) RenameFile(ctx context.Context, fileID, name string) error {
	return c.do(ctx, http.MethodPut, "/files/"+url.PathEscape(fileID)+"/rename", map[string]string{
		"name": name,
	}, nil)
}

// DeleteFile deletes a file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.do(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return canvaserrors.Wrap(err, canvaserrors.ErrCodeInvalidInput, "encoding request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return canvaserrors.Wrap(err, canvaserrors.ErrCodeInvalidInput, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if tok := c.creds.Credential(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return canvaserrors.Wrap(err, canvaserrors.ErrCodeRemoteMutationFailed, fmt.Sprintf("%s %s", method, path)).
			WithContext("method", method).
			WithContext("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, method, path)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return canvaserrors.Wrap(err, canvaserrors.ErrCodeRemoteMutationFailed, "decoding response").
			WithContext("path", path)
	}
	return nil
}

func statusError(resp *http.Response, method, path string) error {
	detail := readDetail(resp.Body)

	code := canvaserrors.ErrCodeRemoteMutationFailed
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = canvaserrors.ErrCodeUnauthorized
	case http.StatusNotFound:
		code = canvaserrors.ErrCodeEntityNotFound
	}

	msg := fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)
	if detail != "" {
		msg += ": " + detail
	}
	return canvaserrors.New(code, msg).WithContext("status", resp.StatusCode)
}

func readDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}
