package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "leadops/1.0"
)

// Options configures request timeouts. ReportTimeout of 0 means unbounded,
// which is what the report endpoints need since they can run for minutes.
type Options struct {
	Timeout       time.Duration
	ReportTimeout time.Duration
}

// Client is the single HTTP wrapper for the lead-automation backend. It
// attaches the bearer token, centralises base URL and timeouts, and turns
// failures into *APIError or domain.ErrServerOffline. It never retries.
type Client struct {
	baseURL    string
	tokens     domain.TokenSource
	httpClient *http.Client
	longClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new backend client
func NewClient(baseURL string, tokens domain.TokenSource, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: opts.Timeout},
		longClient: &http.Client{Timeout: opts.ReportTimeout},
		logger:     logger,
	}
}

// BaseURL returns the configured backend URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Long returns a client sharing this one's configuration that uses the report
// timeout instead of the default.
func (c *Client) Long() *Client {
	cp := *c
	cp.httpClient = c.longClient
	return &cp
}

// Get performs a GET and decodes the JSON response into out (may be nil)
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

// Post performs a POST with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

// Patch performs a PATCH with a JSON body
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete performs a DELETE
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, out)
}

// Upload describes a multipart file upload
type Upload struct {
	Field    string // form field holding the file, "file" when empty
	Filename string
	Content  io.Reader
	Fields   map[string]string
}

// PostMultipart uploads a file with multipart form encoding
func (c *Client) PostMultipart(ctx context.Context, path string, up Upload, out any) error {
	field := up.Field
	if field == "" {
		field = "file"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range up.Fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile(field, up.Filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, up.Content); err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	body, _, err := c.doRequest(ctx, http.MethodPost, path, nil, &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// Download fetches a binary export. The filename comes from the
// Content-Disposition header, falling back to the last path segment.
func (c *Client) Download(ctx context.Context, p string, query url.Values) (*domain.Blob, error) {
	body, header, err := c.doRequest(ctx, http.MethodGet, p, query, nil, "")
	if err != nil {
		return nil, err
	}
	return &domain.Blob{
		Filename:    filenameFromHeader(header.Get("Content-Disposition"), path.Base(p)),
		ContentType: header.Get("Content-Type"),
		Data:        body,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	respBody, _, err := c.doRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	return decodeInto(respBody, out)
}

// doRequest performs an authenticated HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, http.Header, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("backend request", "method", method, "url", reqURL, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		c.logger.Error("backend request failed", "method", method, "path", path, "error", err)
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Status: resp.StatusCode,
			Detail: parseDetail(resp.StatusCode, respBody),
			Method: method,
			Path:   path,
		}
		// 401 is left to the session layer; credentials stay in place.
		if resp.StatusCode >= 500 {
			c.logger.Error("backend server error", "status", resp.StatusCode, "path", path,
				"request_id", requestID, "detail", apiErr.Detail)
		} else {
			c.logger.Debug("backend request rejected", "status", resp.StatusCode, "path", path, "detail", apiErr.Detail)
		}
		return nil, nil, apiErr
	}

	return respBody, resp.Header, nil
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func filenameFromHeader(disposition, fallback string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return path.Base(name)
			}
		}
	}
	return fallback
}
