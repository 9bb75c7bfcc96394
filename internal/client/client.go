// Package client is the HTTP client for the Readora backend REST API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/config"
	"github.com/hyperjump/readora/internal/models"
)

// maxErrorBody bounds how much of a failed response body is read for messages.
const maxErrorBody = 64 << 10

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
	newID      func() string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets a logger for request tracing at debug level.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "readora-cli",
		logger:     zap.NewNop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig creates a client from the api section of the config.
func NewFromConfig(cfg *config.APIConfig, opts ...ClientOption) (*Client, error) {
	opts = append([]ClientOption{WithUserAgent(cfg.UserAgent)}, opts...)
	return New(cfg.BaseURL, cfg.Timeout, opts...)
}

// ListBooks returns the whole collection, personal and public (GET /books).
func (c *Client) ListBooks(ctx context.Context) ([]models.BookRecord, error) {
	var books []models.BookRecord
	if err := c.getJSON(ctx, "list books", c.endpoint("/books", nil), &books); err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.BookRecord{}
	}
	return books, nil
}

// ListPublicBooks returns up to limit public-library records (GET /books/public).
// A limit <= 0 leaves the page size to the server.
func (c *Client) ListPublicBooks(ctx context.Context, limit int) ([]models.BookRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var books []models.BookRecord
	if err := c.getJSON(ctx, "list public books", c.endpoint("/books/public", q), &books); err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.BookRecord{}
	}
	return books, nil
}

// Stats returns the backend's aggregate counts (GET /stats).
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	if err := c.getJSON(ctx, "load stats", c.endpoint("/stats", nil), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ResolveDownload returns the URL the file of id can be fetched from
// (GET /books/:id/download). Relative URLs are resolved against the API base.
func (c *Client) ResolveDownload(ctx context.Context, id models.BookID) (string, error) {
	endpoint := c.endpoint(bookPath(id)+"/download", nil)
	var body struct {
		URL string `json:"url"`
	}
	if err := c.getJSON(ctx, "resolve download", endpoint, &body); err != nil {
		return "", err
	}
	if body.URL == "" {
		return "", &models.FetchError{Op: "resolve download", URL: endpoint, Err: errors.New("response has no download url")}
	}
	ref, err := url.Parse(body.URL)
	if err != nil {
		return "", &models.FetchError{Op: "resolve download", URL: endpoint, Err: fmt.Errorf("invalid download url: %w", err)}
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// InlineURL returns the URL an embedded viewer loads to display id inline.
// It is never fetched by the client.
func (c *Client) InlineURL(id models.BookID) string {
	return c.endpoint(bookPath(id)+"/download", url.Values{"inline": {"true"}})
}

// Download resolves the download URL of id and streams the file into w.
func (c *Client) Download(ctx context.Context, id models.BookID, w io.Writer) (int64, error) {
	fileURL, err := c.ResolveDownload(ctx, id)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, http.MethodGet, fileURL, nil, "")
	if err != nil {
		return 0, &models.FetchError{Op: "download", URL: fileURL, Err: err}
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return 0, &models.FetchError{Op: "download", URL: fileURL, Status: resp.StatusCode, Err: bodyError(resp.Body)}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &models.FetchError{Op: "download", URL: fileURL, Err: err}
	}
	return n, nil
}

// CreateBook uploads a file and its metadata (POST /books, multipart).
// Input is validated before any request is made.
func (c *Client) CreateBook(ctx context.Context, in *models.UploadInput) (*models.BookRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, in))
	}()

	resp, err := c.do(ctx, http.MethodPost, c.endpoint("/books", nil), pr, mw.FormDataContentType())
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, &models.MutationError{Op: "upload", Message: fmt.Sprintf("Upload failed: %v", err), Err: err}
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := serverMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("Upload failed (%d)", resp.StatusCode)
		}
		return nil, &models.MutationError{Op: "upload", Status: resp.StatusCode, Message: msg}
	}
	var book models.BookRecord
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, &models.MutationError{Op: "upload", Status: resp.StatusCode,
			Message: "Upload succeeded but the response could not be read", Err: err}
	}
	return &book, nil
}

func writeUploadForm(mw *multipart.Writer, in *models.UploadInput) error {
	fields := []struct{ name, value string }{
		{"title", strings.TrimSpace(in.Title)},
		{"author", in.Author},
		{"description", in.Description},
		{"genre", in.Genre},
		{"copyright_status", in.CopyrightStatus},
		{"language", in.Language},
		{"is_public", strconv.FormatBool(in.IsPublic)},
		{"library_type", in.EffectiveLibraryType()},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", in.FileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, in.File); err != nil {
		return fmt.Errorf("read upload file: %w", err)
	}
	return mw.Close()
}

// DeleteBook deletes a record (DELETE /books/:id). The response body of a
// successful call is ignored.
func (c *Client) DeleteBook(ctx context.Context, id models.BookID) error {
	resp, err := c.do(ctx, http.MethodDelete, c.endpoint(bookPath(id), nil), nil, "")
	if err != nil {
		return &models.MutationError{Op: "delete", Message: fmt.Sprintf("Delete failed: %v", err), Err: err}
	}
	defer resp.Body.Close()
	if success(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := serverMessage(body)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = fmt.Sprintf("Delete failed (%d)", resp.StatusCode)
	}
	merr := &models.MutationError{Op: "delete", Status: resp.StatusCode, Message: msg}
	if resp.StatusCode == http.StatusNotFound {
		merr.Err = models.ErrNotFound
	}
	return merr
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return &models.FetchError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return &models.FetchError{Op: op, URL: endpoint, Status: resp.StatusCode, Err: bodyError(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.FetchError{Op: op, URL: endpoint, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	requestID := c.newID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("method", method), zap.String("url", endpoint),
			zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}
	c.logger.Debug("api request",
		zap.String("method", method), zap.String("url", endpoint),
		zap.String("request_id", requestID), zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))
	return resp, nil
}

// endpoint joins an already escaped path onto the base URL.
func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	escaped := strings.TrimRight(c.baseURL.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		unescaped = escaped
	}
	u.Path, u.RawPath = unescaped, escaped
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func bookPath(id models.BookID) string {
	return "/books/" + url.PathEscape(id.String())
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// bodyError turns a failed response body into an error carrying the server's message, if any.
func bodyError(body io.Reader) error {
	b, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if msg := serverMessage(b); msg != "" {
		return errors.New(msg)
	}
	return nil
}

// serverMessage extracts a human-readable message from a JSON error body:
// "detail" (string, or a list of {"msg": ...} validation entries) first, then "message".
func serverMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}
		var entries []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &entries); err == nil {
			msgs := make([]string, 0, len(entries))
			for _, e := range entries {
				if e.Msg != "" {
					msgs = append(msgs, e.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return payload.Message
}
