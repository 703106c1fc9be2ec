// Package httpx posts payloads to HTTP work sources and result sinks and
// reports the outcome as a retval.Value. Requests are traced through the
// otelhttp transport.
package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xraph/taskdispatch/codec"
	"github.com/xraph/taskdispatch/retval"
)

const (
	// DefaultTimeout bounds each request.
	DefaultTimeout = 60 * time.Second

	// TokenHeader carries the caller token on binary posts.
	TokenHeader = "bot-token"

	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

// Unpack selects how a binary response body is turned into Value.Text.
type Unpack int

const (
	// UnpackNone uses the body text as-is.
	UnpackNone Unpack = iota
	// UnpackGzipBase64 base64-decodes the body and then gunzips it.
	UnpackGzipBase64
	// UnpackBase64 base64-decodes the body.
	UnpackBase64
)

// Client posts requests and never returns a Go error: every failure is
// reported through the returned Value.
type Client struct {
	client *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithTransport sets the underlying round tripper. It is still wrapped
// by otelhttp.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.client.Transport = otelhttp.NewTransport(rt) }
}

// NewClient creates a Client with a 60s timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON posts body as application/json. On HTTP 200 the Value holds
// the response body as Text and Bytes.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte) retval.Value {
	raw, err := c.post(ctx, url, body, http.Header{"Content-Type": {contentTypeJSON}})
	if err != nil {
		return retval.Failure(err.Error())
	}
	return retval.Success(string(raw), raw)
}

// PostBinary posts body as application/octet-stream with token in the
// bot-token header. On HTTP 200 Bytes holds the raw response body and
// Text holds it after unpacking.
func (c *Client) PostBinary(ctx context.Context, url string, body []byte, token string, unpack Unpack) retval.Value {
	raw, err := c.post(ctx, url, body, http.Header{
		"Content-Type": {contentTypeBinary},
		TokenHeader:    {token},
	})
	if err != nil {
		return retval.Failure(err.Error())
	}

	var text string
	switch unpack {
	case UnpackGzipBase64:
		text, err = codec.GunzipBase64String(string(raw))
	case UnpackBase64:
		text, err = codec.Base64ToString(string(raw))
	default:
		text = string(raw)
	}
	if err != nil {
		return retval.Failure(err.Error())
	}
	return retval.Success(text, raw)
}

func (c *Client) post(ctx context.Context, url string, body []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("request failed, http code=%d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
