package ptrchttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/peterbourgon/ptrc"
	"github.com/peterbourgon/unixtransport"
)

// HTTPClient models a concrete http.Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// NewHTTPClient returns an HTTP client that also supports unix sockets, via
// URIs like http+unix:///path/to/socket:/trace.
func NewHTTPClient() *http.Client {
	var transport http.Transport
	unixtransport.Register(&transport)
	return &http.Client{Transport: &transport}
}

// Client calls a remote [Server].
type Client struct {
	client  HTTPClient
	baseurl string
}

// NewClient returns a client calling the server at baseurl. If client is nil,
// the result of NewHTTPClient is used.
func NewClient(client HTTPClient, baseurl string) *Client {
	if client == nil {
		client = NewHTTPClient()
	}
	if !strings.Contains(baseurl, "://") {
		baseurl = "http://" + baseurl
	}
	return &Client{
		client:  client,
		baseurl: strings.TrimSuffix(baseurl, "/"),
	}
}

// Fetch returns the serialized session, optionally stopping it.
func (c *Client) Fetch(ctx context.Context, stop bool) ([]byte, error) {
	path := "/trace"
	if stop {
		path += "?stop=true"
	}

	var buf bytes.Buffer
	if err := c.do(ctx, "GET", path, nil, &buf); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	return buf.Bytes(), nil
}

// FetchDocument returns the parsed session, optionally stopping it.
func (c *Client) FetchDocument(ctx context.Context, stop bool) (*ptrc.ChromeDocument, error) {
	data, err := c.Fetch(ctx, stop)
	if err != nil {
		return nil, err
	}
	return ptrc.DecodeChromeDocument(bytes.NewReader(data))
}

// Start a session on the remote server.
func (c *Client) Start(ctx context.Context, req StartRequest) (ptrc.Stats, error) {
	var stats ptrc.Stats
	if err := c.doJSON(ctx, "POST", "/start", req, &stats); err != nil {
		return ptrc.Stats{}, fmt.Errorf("start: %w", err)
	}
	return stats, nil
}

// Stop the session on the remote server, returning its final stats.
func (c *Client) Stop(ctx context.Context) (ptrc.Stats, error) {
	var stats ptrc.Stats
	if err := c.doJSON(ctx, "POST", "/stop", nil, &stats); err != nil {
		return ptrc.Stats{}, fmt.Errorf("stop: %w", err)
	}
	return stats, nil
}

// Stats returns the stats of the session on the remote server.
func (c *Client) Stats(ctx context.Context) (ptrc.Stats, error) {
	var stats ptrc.Stats
	if err := c.doJSON(ctx, "GET", "/stats", nil, &stats); err != nil {
		return ptrc.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

// AddMetadata adds metadata to the session on the remote server.
func (c *Client) AddMetadata(ctx context.Context, key string, value any) error {
	if err := c.doJSON(ctx, "POST", "/metadata", MetadataRequest{Key: key, Value: value}, nil); err != nil {
		return fmt.Errorf("add metadata: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, req, res any) error {
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	var buf bytes.Buffer
	if err := c.do(ctx, method, path, body, &buf); err != nil {
		return err
	}

	if res == nil {
		return nil
	}

	if err := json.Unmarshal(buf.Bytes(), res); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseurl+path, body)
	if err != nil {
		return fmt.Errorf("create HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute HTTP request: %w", redactURL(err))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return remoteError(resp)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	return nil
}

// RemoteError is returned when the server responds with an error.
type RemoteError struct {
	StatusCode int
	Kind       string
	Message    string
}

// Error implements error.
func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote status code %d", e.StatusCode)
	}
	return fmt.Sprintf("remote status code %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the session error reported by the server, if any, so that
// errors.Is works across the wire.
func (e *RemoteError) Unwrap() error {
	return sessionErrors[e.Kind]
}

func remoteError(resp *http.Response) error {
	var er errorResponse
	json.NewDecoder(io.LimitReader(resp.Body, maxRequestBodySizeBytes)).Decode(&er)
	return &RemoteError{StatusCode: resp.StatusCode, Kind: er.Kind, Message: er.Error}
}

func redactURL(err error) error {
	if urlErr := (&url.Error{}); errors.As(err, &urlErr) {
		err = fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
