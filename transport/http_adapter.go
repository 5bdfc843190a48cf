package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rpcsession/core"
)

const (
	KindREST = "rest"
	KindSOAP = "soap"
)

const (
	defaultClientTimeout           = 30 * time.Second
	defaultResponseBodyLimit int64 = 10 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPAdapter performs one HTTP exchange per Do. A non-2xx status is still a
// response; only an exchange that could not complete is an error, so callers
// can inspect fault envelopes delivered with 500.
type HTTPAdapter struct {
	Client               HTTPDoer
	DefaultMethod        string
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64

	kind string
}

type HTTPAdapterOption func(*HTTPAdapter)

func WithDefaultMethod(method string) HTTPAdapterOption {
	return func(a *HTTPAdapter) {
		a.DefaultMethod = strings.ToUpper(strings.TrimSpace(method))
	}
}

func WithDefaultHeaders(headers map[string]string) HTTPAdapterOption {
	return func(a *HTTPAdapter) {
		for key, value := range headers {
			if key = strings.TrimSpace(key); key != "" {
				a.DefaultHeaders[key] = strings.TrimSpace(value)
			}
		}
	}
}

func WithResponseLimit(limit int64) HTTPAdapterOption {
	return func(a *HTTPAdapter) {
		if limit > 0 {
			a.MaxResponseBodyBytes = limit
		}
	}
}

func NewHTTPAdapter(kind string, client HTTPDoer, opts ...HTTPAdapterOption) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	adapter := &HTTPAdapter{
		Client:               client,
		DefaultMethod:        http.MethodGet,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultResponseBodyLimit,
		kind:                 normalizeKind(kind),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func NewRESTAdapter(client HTTPDoer, opts ...HTTPAdapterOption) *HTTPAdapter {
	return NewHTTPAdapter(KindREST, client, opts...)
}

// NewSOAPAdapter posts SOAP 1.1 envelopes. The SOAPAction header is supplied
// per request by the invoker.
func NewSOAPAdapter(client HTTPDoer, opts ...HTTPAdapterOption) *HTTPAdapter {
	defaults := []HTTPAdapterOption{
		WithDefaultMethod(http.MethodPost),
		WithDefaultHeaders(map[string]string{
			"Content-Type": "text/xml; charset=utf-8",
			"Accept":       "text/xml",
		}),
	}
	return NewHTTPAdapter(KindSOAP, client, append(defaults, opts...)...)
}

func (a *HTTPAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *HTTPAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, transportError(
			"transport: http adapter requires a client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := a.buildRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	meta := map[string]any{"adapter": a.kind, "method": httpReq.Method, "url": httpReq.URL.String()}
	if operation, ok := req.Metadata["operation"]; ok {
		meta["operation"] = operation
	}

	started := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, exchangeError(ctx, err, meta)
	}
	defer httpRes.Body.Close()

	limit := req.MaxResponseBodyBytes
	if limit <= 0 {
		limit = a.MaxResponseBodyBytes
	}
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	meta["status_code"] = httpRes.StatusCode
	body, err := readBody(ctx, httpRes.Body, limit, meta)
	if err != nil {
		return core.TransportResponse{}, err
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"kind":           a.kind,
			"duration_ms":    time.Since(started).Milliseconds(),
			"sent_bytes":     len(req.Body),
			"received_bytes": len(body),
			"content_type":   httpRes.Header.Get("Content-Type"),
		},
	}, nil
}

func (a *HTTPAdapter) buildRequest(ctx context.Context, req core.TransportRequest) (*http.Request, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, transportError(
			"transport: request url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": a.kind},
		)
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			http.StatusBadRequest,
			map[string]any{"adapter": a.kind, "url": rawURL},
		)
	}
	if len(req.Query) > 0 {
		values := target.Query()
		for key, value := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				values.Set(key, strings.TrimSpace(value))
			}
		}
		target.RawQuery = values.Encode()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = a.DefaultMethod
	}
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"adapter": a.kind, "method": method},
		)
	}
	for _, headers := range []map[string]string{a.DefaultHeaders, req.Headers} {
		for key, value := range headers {
			if key = strings.TrimSpace(key); key != "" {
				httpReq.Header.Set(key, strings.TrimSpace(value))
			}
		}
	}
	return httpReq, nil
}

func readBody(ctx context.Context, body io.Reader, limit int64, meta map[string]any) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, exchangeError(ctx, err, meta)
	}
	if int64(len(payload)) > limit {
		meta["response_limit_b"] = limit
		return nil, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			meta,
		)
	}
	return payload, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func cloneMetadata(input map[string]any) map[string]any {
	out := make(map[string]any, len(input)+1)
	for key, value := range input {
		out[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*HTTPAdapter)(nil)
