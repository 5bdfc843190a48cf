package transport

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-rpcsession/core"
)

// AdapterFactory builds a transport from the flattened transport config.
type AdapterFactory func(config map[string]any) (core.TransportAdapter, error)

// Registry resolves transport kinds to adapters. A kind is bound either to a
// shared adapter instance or to a factory that builds one per client.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]AdapterFactory
}

func NewRegistry() *Registry {
	return &Registry{kinds: map[string]AdapterFactory{}}
}

// NewDefaultRegistry binds the rest and soap kinds to keep-alive HTTP
// transports.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	for _, kind := range []string{KindREST, KindSOAP} {
		kind := kind
		_ = registry.RegisterFactory(kind, func(config map[string]any) (core.TransportAdapter, error) {
			return NewHTTPTransport(kind, HTTPConfigFromMap(config))
		})
	}
	return registry
}

// Register binds adapter.Kind() to a shared instance.
func (r *Registry) Register(adapter core.TransportAdapter) error {
	if adapter == nil {
		return fmt.Errorf("transport: adapter is nil")
	}
	return r.bind(adapter.Kind(), func(map[string]any) (core.TransportAdapter, error) {
		return adapter, nil
	})
}

func (r *Registry) RegisterFactory(kind string, factory AdapterFactory) error {
	if factory == nil {
		return fmt.Errorf("transport: adapter factory is nil")
	}
	return r.bind(kind, factory)
}

func (r *Registry) bind(kind string, factory AdapterFactory) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return fmt.Errorf("transport: adapter kind is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[kind]; exists {
		return fmt.Errorf("transport: kind %q already registered", kind)
	}
	r.kinds[kind] = factory
	return nil
}

func (r *Registry) Build(kind string, config map[string]any) (core.TransportAdapter, error) {
	if r == nil {
		return nil, fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	r.mu.RLock()
	factory, ok := r.kinds[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: kind %q not registered (known: %s)", kind, strings.Join(r.Kinds(), ", "))
	}

	input := make(map[string]any, len(config))
	for key, value := range config {
		input[key] = value
	}
	adapter, err := factory(input)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, fmt.Errorf("transport: factory for %q returned nil adapter", kind)
	}
	return adapter, nil
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for kind := range r.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// TransportConfigMap renders client transport settings as factory config.
func TransportConfigMap(cfg core.TransportConfig) map[string]any {
	return map[string]any{
		"timeout_seconds":      cfg.TimeoutSeconds,
		"insecure_skip_verify": cfg.InsecureSkipVerify,
		"max_response_bytes":   cfg.MaxResponseBytes,
	}
}

// HTTPConfigFromMap accepts numbers and booleans as native values or strings.
func HTTPConfigFromMap(config map[string]any) HTTPConfig {
	return HTTPConfig{
		Timeout:            time.Duration(intSetting(config["timeout_seconds"])) * time.Second,
		InsecureSkipVerify: boolSetting(config["insecure_skip_verify"]),
		MaxResponseBytes:   intSetting(config["max_response_bytes"]),
		DisableKeepAlives:  boolSetting(config["disable_keep_alives"]),
	}
}

func intSetting(value any) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

func boolSetting(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(v))
		return parsed
	}
	return false
}
