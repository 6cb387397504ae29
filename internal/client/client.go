package client

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

	"github.com/yourorg/vision-showcase/internal/types"
)

// Client talks to the vision-showcase API and performs the direct PUT to the
// object store.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API served at baseURL.
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewWithHTTPClient creates a client with a custom HTTP client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// APIError is a non-2xx answer from the API or the object store.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("unexpected status %d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// RequestUploadURL asks the issuer for a write URL for filename.
func (c *Client) RequestUploadURL(ctx context.Context, filename, contentType string) (types.UploadResponse, error) {
	body, err := json.Marshal(types.UploadRequest{Filename: filename, ContentType: contentType})
	if err != nil {
		return types.UploadResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", bytes.NewReader(body))
	if err != nil {
		return types.UploadResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out types.UploadResponse
	if err := c.do(req, &out); err != nil {
		return types.UploadResponse{}, err
	}
	if out.URL == "" {
		return types.UploadResponse{}, fmt.Errorf("upload response has no url")
	}
	return out, nil
}

// Upload PUTs size bytes from body to the signed URL in target. Content-Type
// is always set; headers the issuer signed are replayed on top.
func (c *Client) Upload(ctx context.Context, target types.UploadResponse, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Status reports whether filename has been analyzed.
func (c *Client) Status(ctx context.Context, filename string) (types.Status, error) {
	u := c.baseURL + "/api/status?" + url.Values{"filename": {filename}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	var out types.StatusResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return types.ParseStatus(string(out.Status))
}

// Images fetches the gallery, newest first.
func (c *Client) Images(ctx context.Context) ([]types.ImageEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/images", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	out := []types.ImageEntry{}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
		var e types.ErrorResponse
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Details = e.Error, e.Details
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
