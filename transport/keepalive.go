package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rpcsession/core"
)

const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 90 * time.Second
)

type HTTPConfig struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxResponseBytes   int64
	DisableKeepAlives  bool
}

// HTTPConfigFromCore maps client transport settings onto HTTPConfig.
func HTTPConfigFromCore(cfg core.Config) HTTPConfig {
	return HTTPConfig{
		Timeout:            cfg.TransportTimeout(),
		InsecureSkipVerify: cfg.Transport.InsecureSkipVerify,
		MaxResponseBytes:   cfg.Transport.MaxResponseBytes,
	}
}

// HTTPTransport keeps a persistent connection pool for one protocol kind
// and can drop it on demand. Exchanges in flight during a reset finish on
// the old pool.
type HTTPTransport struct {
	kind   string
	config HTTPConfig

	mu         sync.RWMutex
	client     *http.Client
	adapter    *HTTPAdapter
	generation int
}

func NewHTTPTransport(kind string, cfg HTTPConfig) (*HTTPTransport, error) {
	kind = normalizeKind(kind)
	switch kind {
	case KindREST, KindSOAP:
	default:
		return nil, transportError(
			"transport: unsupported http transport kind "+kind,
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"kind": kind},
		)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultClientTimeout
	}
	t := &HTTPTransport{kind: kind, config: cfg}
	t.connect()
	return t, nil
}

func (t *HTTPTransport) Kind() string {
	if t == nil {
		return ""
	}
	return t.kind
}

func (t *HTTPTransport) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if t == nil {
		return core.TransportResponse{}, transportError(
			"transport: http transport is nil",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	t.mu.RLock()
	adapter := t.adapter
	generation := t.generation
	t.mu.RUnlock()

	response, err := adapter.Do(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	response.Metadata = cloneMetadata(response.Metadata)
	response.Metadata["connection_generation"] = generation
	return response, nil
}

// ResetConnection closes idle connections and replaces the pool, so the
// next exchange dials a fresh connection.
func (t *HTTPTransport) ResetConnection() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	previous := t.client
	t.connect()
	t.mu.Unlock()

	if previous != nil {
		previous.CloseIdleConnections()
	}
	return nil
}

// Generation counts connection pools created so far, starting at 1.
func (t *HTTPTransport) Generation() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

func (t *HTTPTransport) Close() error {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client != nil {
		client.CloseIdleConnections()
	}
	return nil
}

// connect must be called with t.mu held for writing, or before t is shared.
func (t *HTTPTransport) connect() {
	client := newHTTPClient(t.config)
	limit := WithResponseLimit(t.config.MaxResponseBytes)
	if t.kind == KindSOAP {
		t.adapter = NewSOAPAdapter(client, limit)
	} else {
		t.adapter = NewRESTAdapter(client, limit)
	}
	t.client = client
	t.generation++
}

func newHTTPClient(cfg HTTPConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConns,
		IdleConnTimeout:     defaultIdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in via transport.insecure_skip_verify
		},
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

var (
	_ core.TransportAdapter   = (*HTTPTransport)(nil)
	_ core.ConnectionResetter = (*HTTPTransport)(nil)
)
