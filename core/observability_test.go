package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) counterSnapshot() []capturedCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]capturedCounter(nil), m.counters...)
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func TestClientObservability_QuerySuccess(t *testing.T) {
	h, err := newClientHarness(testConfig(), &scriptedInvoker{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := h.client.Query(context.Background(), "select Id from Account"); err != nil {
		t.Fatalf("query: %v", err)
	}

	counters := h.metrics.counterSnapshot()
	if !hasCounter(counters, "rpcsession.query.total", "success") {
		t.Fatalf("expected rpcsession.query.total success counter")
	}
	if !hasCounter(counters, "rpcsession.login.total", "success") {
		t.Fatalf("expected rpcsession.login.total success counter")
	}
	if !hasHistogram(h.metrics.histograms, "rpcsession.query.duration_ms", "success") {
		t.Fatalf("expected rpcsession.query.duration_ms histogram")
	}
	if !hasLog(h.logger.snapshot(), "debug", "query succeeded", "query") {
		t.Fatalf("expected query succeeded structured log")
	}
}

func TestClientObservability_ExchangeLogCarriesPayloads(t *testing.T) {
	h, err := newClientHarness(testConfig(), &scriptedInvoker{
		calls: []scriptStep{successStep("done")},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := h.client.GetUserInfo(context.Background()); err != nil {
		t.Fatalf("get user info: %v", err)
	}

	var exchange *capturedLog
	for _, item := range h.logger.snapshot() {
		if item.level == "info" && item.msg == "rpc exchange" {
			record := item
			exchange = &record
		}
	}
	if exchange == nil {
		t.Fatalf("expected rpc exchange info log")
	}
	if exchange.fields["sent"] != "<request/>" || exchange.fields["received"] != "<response/>" {
		t.Fatalf("expected raw payloads in exchange log, got %#v", exchange.fields)
	}
	if exchange.fields["operation"] != OperationGetUserInfo {
		t.Fatalf("expected operation field, got %#v", exchange.fields["operation"])
	}
}

func TestClientObservability_EnrichesStructuredErrorFields(t *testing.T) {
	h, err := newClientHarness(testConfig(), &scriptedInvoker{
		calls: []scriptStep{faultStep("fns:INVALID_VALUE", "bad field")},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := h.client.Create(context.Background(), []map[string]any{{"Name": "x"}}); err == nil {
		t.Fatalf("expected create to fail")
	}

	if !hasCounter(h.metrics.counterSnapshot(), "rpcsession.create.total", "failure") {
		t.Fatalf("expected create failure counter")
	}
	records := h.logger.snapshot()
	if !hasLog(records, "error", "create failed", "create") {
		t.Fatalf("expected create failed log")
	}
	last := records[len(records)-1]
	if last.fields["error_text_code"] != ErrorTextRemoteFault {
		t.Fatalf("expected error_text_code %q, got %#v", ErrorTextRemoteFault, last.fields["error_text_code"])
	}
	if last.fields["error_kind"] != string(ErrorKindRemoteFault) {
		t.Fatalf("expected error_kind RemoteFault, got %#v", last.fields["error_kind"])
	}
	metadata, ok := last.fields["error_metadata"].(map[string]any)
	if !ok || metadata["fault_code"] != "fns:INVALID_VALUE" {
		t.Fatalf("expected fault code metadata, got %#v", last.fields["error_metadata"])
	}
}

func TestNormalizeOperation(t *testing.T) {
	cases := map[string]string{
		"query":       "query",
		"queryMore":   "query_more",
		"getUserInfo": "get_user_info",
		" bulk-load ": "bulk_load",
	}
	for input, expected := range cases {
		if got := normalizeOperation(input); got != expected {
			t.Fatalf("normalize %q: expected %q, got %q", input, expected, got)
		}
	}
}

func TestTelemetryDurationNeverNegative(t *testing.T) {
	clock := newFakeClock()
	tel := telemetry{now: clock.Now}
	if got := tel.since(clock.Now().Add(time.Minute)); got != 0 {
		t.Fatalf("expected zero duration for future start, got %s", got)
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}
