package orchestrate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/silvabox/orchestrate-go/internal/httpx"
)

// RefSentinel is the precondition value meaning "must not already exist".
// A write carrying it is sent with If-None-Match instead of If-Match.
const RefSentinel = "*"

// Config carries the settings for a Client. Configuration is always
// explicit; there is no process-wide default instance.
type Config struct {
	// APIKey authenticates every request via HTTP Basic, key as username
	// and empty password.
	APIKey string
	// BaseURL is the root of the service, e.g. https://api.orchestrate.io.
	BaseURL string
	// HTTPClient optionally overrides the underlying http.Client.
	HTTPClient *http.Client
}

// Request describes one pipeline operation. Path is fully built including
// any query string; Body, when non-nil, is serialized as JSON. Ref holds the
// optimistic-concurrency precondition: a concrete ref becomes a quoted
// If-Match header, RefSentinel becomes If-None-Match, empty means no
// precondition.
type Request struct {
	Method string
	Path   string
	Body   any
	Ref    string
}

// Backend executes a Request and returns the completed, normalized response
// regardless of status. Implementations handle transport concerns only;
// error classification happens above them, so HTTP and in-memory backends
// fail identically.
type Backend interface {
	Perform(ctx context.Context, req *Request) (*Response, error)
}

// Client talks to the document/graph service. All methods issue one blocking
// HTTP round trip and surface failures as classified *Error values; callers
// never inspect status codes themselves.
type Client struct {
	backend Backend
}

// New constructs a Client from explicit configuration.
func New(cfg Config, opts ...httpx.Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("orchestrate: API key is required")
	}

	headers := make(http.Header)
	headers.Set("Authorization", basicAuth(cfg.APIKey))
	headers.Set("Accept", "application/json")

	all := append([]httpx.Option{httpx.WithHeaders(headers)}, opts...)
	if cfg.HTTPClient != nil {
		all = append(all, httpx.WithHTTPClient(cfg.HTTPClient))
	}

	hc, err := httpx.NewClient(cfg.BaseURL, all...)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(&httpBackend{client: hc}), nil
}

// NewWithBackend wraps a custom Backend (e.g. an in-process mock transport).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// Collection returns a handle on the named collection.
func (c *Client) Collection(name string) *Collection {
	return &Collection{client: c, Name: name}
}

// GetKV reads the current version of a document. No precondition applies.
func (c *Client) GetKV(ctx context.Context, collection, key string) (*Response, error) {
	if err := validateItem(collection, key); err != nil {
		return nil, err
	}
	return c.perform(ctx, &Request{
		Method: http.MethodGet,
		Path:   itemPath(collection, key),
	})
}

// PutKV writes a document. Every write carries a precondition: a concrete
// ref for a conditional update, or RefSentinel to assert a fresh create.
// Unconditional overwrites are not supported.
func (c *Client) PutKV(ctx context.Context, collection, key string, value any, ref string) (*Response, error) {
	if err := validateItem(collection, key); err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, errors.New("orchestrate: write requires a ref or the create sentinel")
	}
	return c.perform(ctx, &Request{
		Method: http.MethodPut,
		Path:   itemPath(collection, key),
		Body:   value,
		Ref:    ref,
	})
}

// DeleteKV removes a document, conditional on its current ref.
func (c *Client) DeleteKV(ctx context.Context, collection, key, ref string) (*Response, error) {
	if err := validateItem(collection, key); err != nil {
		return nil, err
	}
	if ref == "" || ref == RefSentinel {
		return nil, errors.New("orchestrate: delete requires the current ref")
	}
	return c.perform(ctx, &Request{
		Method: http.MethodDelete,
		Path:   itemPath(collection, key),
		Ref:    ref,
	})
}

// PutRelation creates a directed edge of the given kind between two
// documents. Edges are unversioned; no precondition applies.
func (c *Client) PutRelation(ctx context.Context, collection, key, kind, otherCollection, otherKey string) (*Response, error) {
	if err := validateItem(collection, key); err != nil {
		return nil, err
	}
	if err := validateItem(otherCollection, otherKey); err != nil {
		return nil, err
	}
	if kind == "" {
		return nil, errors.New("orchestrate: relation kind is required")
	}
	return c.perform(ctx, &Request{
		Method: http.MethodPut,
		Path:   relationPath(collection, key, kind, otherCollection, otherKey),
	})
}

// DeleteRelation removes a directed edge.
func (c *Client) DeleteRelation(ctx context.Context, collection, key, kind, otherCollection, otherKey string) (*Response, error) {
	if err := validateItem(collection, key); err != nil {
		return nil, err
	}
	if err := validateItem(otherCollection, otherKey); err != nil {
		return nil, err
	}
	if kind == "" {
		return nil, errors.New("orchestrate: relation kind is required")
	}
	return c.perform(ctx, &Request{
		Method: http.MethodDelete,
		Path:   relationPath(collection, key, kind, otherCollection, otherKey),
	})
}

// GetRelations reads the documents reachable by hopping the given edge kinds
// in order, in a single request.
func (c *Client) GetRelations(ctx context.Context, collection, key string, kinds ...string) (*Response, error) {
	if err := validateItem(collection, key); err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		return nil, errors.New("orchestrate: at least one relation kind is required")
	}
	for _, kind := range kinds {
		if kind == "" {
			return nil, errors.New("orchestrate: relation kind is required")
		}
	}
	return c.perform(ctx, &Request{
		Method: http.MethodGet,
		Path:   relationsPath(collection, key, kinds),
	})
}

// perform runs one request through the backend and the classifier. Every
// response with status >= 400 comes back as a typed *Error; a returned
// *Response always represents success.
func (c *Client) perform(ctx context.Context, req *Request) (*Response, error) {
	if c == nil || c.backend == nil {
		return nil, errors.New("orchestrate: client is not configured")
	}
	resp, err := c.backend.Perform(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("orchestrate: %s %s: %w", req.Method, req.Path, err)
	}
	if err := Classify(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func validateItem(collection, key string) error {
	if collection == "" {
		return errors.New("orchestrate: collection is required")
	}
	if key == "" {
		return errors.New("orchestrate: key is required")
	}
	return nil
}

func basicAuth(apiKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey+":"))
}

// quoteRef wraps a ref in double quotes as If-Match requires, leaving
// already-quoted values alone.
func quoteRef(ref string) string {
	if strings.HasPrefix(ref, `"`) && strings.HasSuffix(ref, `"`) && len(ref) >= 2 {
		return ref
	}
	return `"` + ref + `"`
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) Perform(ctx context.Context, req *Request) (*Response, error) {
	header := make(http.Header)
	switch {
	case req.Ref == "":
	case req.Ref == RefSentinel:
		header.Set("If-None-Match", RefSentinel)
	default:
		header.Set("If-Match", quoteRef(req.Ref))
	}

	var body []byte
	if req.Body != nil {
		data, err := jsonMarshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = data
		header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: req.Method,
		Path:   req.Path,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	raw, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return newResponse(resp.StatusCode, resp.Header, raw), nil
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalWithOption(v, json.DisableHTMLEscape())
}
