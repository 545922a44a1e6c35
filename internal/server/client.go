// Package server talks to the OSM API 0.6: map downloads and changeset uploads.
// It never touches Storage; callers install what it returns.
package server

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/osmio"
)

// RequestIDHeader carries a per-operation correlation id
const RequestIDHeader = "X-Request-Id"

// Options configures a Client
type Options struct {
	URL        string
	Username   string
	Password   string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client is an OSM API client
type Client struct {
	baseURL    string
	username   string
	password   string
	userAgent  string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	log        *zap.Logger
}

// NewClient creates a new API client
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(opts.URL, "/") + "/api/0.6",
		username:   opts.Username,
		password:   opts.Password,
		userAgent:  opts.UserAgent,
		client:     &http.Client{Timeout: opts.Timeout},
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		log:        logger.Named("server"),
	}
	if c.client.Timeout == 0 {
		c.client.Timeout = 60 * time.Second
	}
	if c.retryDelay == 0 {
		c.retryDelay = 2 * time.Second
	}
	if c.userAgent == "" {
		c.userAgent = "osmedit/1.0"
	}
	return c
}

// Download fetches every element inside box. The result carries box as its
// original bounds when the response has none.
func (c *Client) Download(ctx context.Context, box *geo.BoundingBox) (*graph.Builder, osmio.Stats, error) {
	reqID := uuid.NewString()
	log := c.log.With(zap.String("request_id", reqID))
	log.Info("Downloading map data", zap.Stringer("bbox", box))

	start := time.Now()
	body, err := c.do(ctx, reqID, http.MethodGet, "/map?bbox="+box.String(), nil, true)
	if err != nil {
		return nil, osmio.Stats{}, fmt.Errorf("failed to download %s: %w", box, err)
	}

	b, stats, err := osmio.ReadXML(ctx, bytes.NewReader(body))
	if err != nil {
		return nil, stats, err
	}
	b.SetBounds(box)

	log.Info("Downloaded map data",
		zap.Int64("elements", stats.Total()),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))
	return b, stats, nil
}

// DiffEntry maps an uploaded element to its server id and version.
// Deleted elements have NewID and NewVersion zero.
type DiffEntry struct {
	OldID      int64 `xml:"old_id,attr"`
	NewID      int64 `xml:"new_id,attr"`
	NewVersion int   `xml:"new_version,attr"`
}

// DiffResult is the server's answer to an osmChange upload
type DiffResult struct {
	XMLName   xml.Name    `xml:"diffResult"`
	Nodes     []DiffEntry `xml:"node"`
	Ways      []DiffEntry `xml:"way"`
	Relations []DiffEntry `xml:"relation"`
}

// Len returns the number of entries
func (d *DiffResult) Len() int {
	return len(d.Nodes) + len(d.Ways) + len(d.Relations)
}

// UploadResult describes a finished upload
type UploadResult struct {
	ChangesetID int64
	Diff        DiffResult
}

type changesetDoc struct {
	XMLName   xml.Name `xml:"osm"`
	Changeset struct {
		Tags osm.Tags `xml:"tag"`
	} `xml:"changeset"`
}

// Upload opens a changeset, uploads cs as osmChange and closes the changeset.
// The changeset is closed even when the upload fails.
func (c *Client) Upload(ctx context.Context, cs *graph.ChangeSet, comment string) (*UploadResult, error) {
	if cs.Len() == 0 {
		return nil, fmt.Errorf("nothing to upload: %w", editerr.ErrInvariant)
	}
	reqID := uuid.NewString()
	log := c.log.With(zap.String("request_id", reqID))

	id, err := c.openChangeset(ctx, reqID, comment)
	if err != nil {
		return nil, err
	}
	log.Info("Opened changeset", zap.Int64("changeset", id), zap.Int("changes", cs.Len()))

	result, uploadErr := c.uploadChange(ctx, reqID, cs, id)

	if _, err := c.do(ctx, reqID, http.MethodPut, fmt.Sprintf("/changeset/%d/close", id), nil, true); err != nil {
		log.Warn("Failed to close changeset", zap.Int64("changeset", id), zap.Error(err))
		if uploadErr == nil {
			return nil, fmt.Errorf("failed to close changeset %d: %w", id, err)
		}
	}
	if uploadErr != nil {
		return nil, uploadErr
	}

	log.Info("Uploaded changeset", zap.Int64("changeset", id), zap.Int("diff_entries", result.Diff.Len()))
	return result, nil
}

func (c *Client) openChangeset(ctx context.Context, reqID, comment string) (int64, error) {
	var doc changesetDoc
	doc.Changeset.Tags = osm.Tags{{Key: "created_by", Value: c.userAgent}}
	if comment != "" {
		doc.Changeset.Tags = append(doc.Changeset.Tags, osm.Tag{Key: "comment", Value: comment})
	}
	payload, err := xml.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to encode changeset: %w", err)
	}

	body, err := c.do(ctx, reqID, http.MethodPut, "/changeset/create", payload, false)
	if err != nil {
		return 0, fmt.Errorf("failed to open changeset: %w", err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("changeset id %q: %w", body, editerr.ErrParse)
	}
	return id, nil
}

func (c *Client) uploadChange(ctx context.Context, reqID string, cs *graph.ChangeSet, id int64) (*UploadResult, error) {
	var buf bytes.Buffer
	if err := osmio.WriteChange(&buf, cs, id); err != nil {
		return nil, fmt.Errorf("failed to encode osmChange: %w", err)
	}

	body, err := c.do(ctx, reqID, http.MethodPost, fmt.Sprintf("/changeset/%d/upload", id), buf.Bytes(), false)
	if err != nil {
		return nil, fmt.Errorf("failed to upload changeset %d: %w", id, err)
	}

	result := &UploadResult{ChangesetID: id}
	if err := xml.Unmarshal(body, &result.Diff); err != nil {
		return nil, fmt.Errorf("diff result: %v: %w", err, editerr.ErrParse)
	}
	return result, nil
}

// do performs one API call and returns the response body. Only idempotent
// calls are retried, on transport failures and 5xx responses.
func (c *Client) do(ctx context.Context, reqID, method, path string, payload []byte, retry bool) ([]byte, error) {
	attempts := 1
	if retry {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			c.log.Debug("Retrying request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, status, err := c.roundTrip(ctx, reqID, method, path, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%s %s: %v: %w", method, path, err, editerr.ErrNoConnection)
			continue
		}
		if status >= 500 {
			lastErr = statusError(status, body)
			continue
		}
		if status < 200 || status > 299 {
			return nil, statusError(status, body)
		}
		return body, nil
	}
	return nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, reqID, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// StatusError is a non-2xx API response
type StatusError struct {
	Code    int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return e.kind }

func statusError(code int, body []byte) error {
	kind := editerr.ErrUndefined
	if code == http.StatusUnauthorized {
		kind = editerr.ErrWrongLogin
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &StatusError{Code: code, Message: msg, kind: kind}
}

// IsStatus reports whether err is an API response with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
