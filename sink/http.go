package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"brandseed/cargo"
)

const maxErrorBody = 512

// StatusError is a non-2xx answer from the bulk endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bulk endpoint returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("bulk endpoint returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// HTTP posts each batch as a JSON array to a bulk-insert URL.
type HTTP struct {
	url    string
	apiKey string
	client *http.Client
}

type HTTPOption func(*HTTP)

func WithAPIKey(key string) HTTPOption { return func(h *HTTP) { h.apiKey = key } }

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{url: url, client: &http.Client{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Submit sends the batch. The request deadline comes from ctx.
func (h *HTTP) Submit(ctx context.Context, b cargo.Batch) error {
	body, err := json.Marshal(b.Records)
	if err != nil {
		return errors.Wrap(err, "encode batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("X-API-Key", h.apiKey)
	}

	res, err := h.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post %s", h.url)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newStatusError(res.StatusCode, res.Body)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func newStatusError(code int, body io.Reader) *StatusError {
	snippet, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return &StatusError{Code: code, Body: strings.TrimSpace(string(snippet))}
}
