package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/transport"
	"github.com/kbukum/asynchttp/version"
)

// Request describes a request relative to the client's base URL.
type Request struct {
	// Method is the HTTP method. Defaults to GET.
	Method string
	// Path is joined to BaseURL. An absolute http(s) URL is used as is.
	Path string
	// Headers override the client's default headers.
	Headers map[string]string
	// Query parameters are added to the URL.
	Query map[string]string
	// Body accepts io.Reader, []byte, string, or any value that will be
	// JSON-encoded.
	Body any
}

// resolveURL joins path to base unless path is already absolute.
func resolveURL(base, path string) string {
	if base == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// build turns req into a transport request.
func (c *Client) build(req Request) (*transport.Request, error) {
	body, contentType, length, err := encodeBody(req.Body)
	if err != nil {
		return nil, apperrors.InvalidInput("body", fmt.Sprintf("encode body: %v", err)).WithCause(err)
	}

	raw := resolveURL(c.cfg.BaseURL, req.Path)
	if len(req.Query) > 0 {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, apperrors.InvalidInput("url", err.Error()).WithCause(err)
		}
		q := u.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		raw = u.String()
	}

	header := make(http.Header, len(c.cfg.Headers)+len(req.Headers)+2)
	header.Set("User-Agent", version.UserAgent())
	for k, v := range c.cfg.Headers {
		header.Set(k, v)
	}
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	if body != nil && contentType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", contentType)
	}

	return &transport.Request{
		Method:        req.Method,
		URL:           raw,
		Header:        header,
		Body:          body,
		ContentLength: length,
	}, nil
}

// encodeBody converts a body value into a reader, its content type and its
// length, or 0 when net/http should work the length out itself.
func encodeBody(body any) (io.Reader, string, int64, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", 0, nil
	case io.Reader:
		return v, "", 0, nil
	case []byte:
		return bytes.NewReader(v), "", int64(len(v)), nil
	case string:
		return strings.NewReader(v), "text/plain", int64(len(v)), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", 0, err
		}
		return bytes.NewReader(data), "application/json", int64(len(data)), nil
	}
}
