package shotstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/promoforge/internal/promo"
)

const maxResponseBytes = 10 << 20

// CredentialsFunc resolves the API key and host for one call. It is invoked per request so a
// missing key only fails the calls that need it.
type CredentialsFunc func() (promo.Credentials, error)

// Client issues authenticated JSON requests against the rendering service.
type Client struct {
	credentials CredentialsFunc
	httpClient  *http.Client
}

// NewClient wires a Client. A nil httpClient gets a 30s default.
func NewClient(credentials CredentialsFunc, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{credentials: credentials, httpClient: httpClient}
}

// RawResponse is an upstream reply, returned for every HTTP status.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the upstream answered 2xx.
func (r RawResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Parsed is the result of decoding a body: the JSON value when it parsed, the raw text otherwise.
type Parsed struct {
	JSON   any
	Raw    string
	IsJSON bool
}

// Value returns whichever representation the body had.
func (p Parsed) Value() any {
	if p.IsJSON {
		return p.JSON
	}
	return p.Raw
}

// Decode parses the body as JSON, falling back to the raw text.
func (r RawResponse) Decode() Parsed {
	var v any
	if len(bytes.TrimSpace(r.Body)) > 0 && json.Unmarshal(r.Body, &v) == nil {
		return Parsed{JSON: v, IsJSON: true}
	}
	return Parsed{Raw: string(r.Body)}
}

// DecodeInto unmarshals the body into out.
func (r RawResponse) DecodeInto(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode upstream body: %w", err)
	}
	return nil
}

// Call sends method path with an optional JSON body. Non-2xx replies are not errors; transport
// failures come back as *promo.TransportError and credential problems as *promo.ConfigError.
func (c *Client) Call(ctx context.Context, method, path string, jsonBody any) (RawResponse, error) {
	creds, err := c.credentials()
	if err != nil {
		return RawResponse{}, err
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	op := method + " " + path

	var body io.Reader
	if jsonBody != nil {
		payload, err := json.Marshal(jsonBody)
		if err != nil {
			return RawResponse{}, fmt.Errorf("encode %s body: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, creds.Host+path, body)
	if err != nil {
		return RawResponse{}, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("x-api-key", creds.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RawResponse{}, &promo.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return RawResponse{}, &promo.TransportError{Op: op, Err: err}
	}
	return RawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
