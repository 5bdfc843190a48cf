package gologger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("rpcsession", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("rpcsession", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("rpcsession", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestNewTextLogger_FiltersByLevelAndNamesChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, "warn")

	var provider glog.LoggerProvider = logger
	named := provider.GetLogger("rpcsession")
	named.Debug("hidden debug", "k", "v")
	named.WithContext(context.Background()).Info("rpc exchange", "operation", "query")
	named.Warn("malformed response, retrying", "attempt", 1)

	out := buf.String()
	if strings.Contains(out, "hidden debug") || strings.Contains(out, "rpc exchange") {
		t.Fatalf("expected debug and info records to be filtered at warn, got %s", out)
	}
	for _, want := range []string{"level=warn", `msg="malformed response, retrying"`, "logger=rpcsession", "attempt=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output\n%s", want, out)
		}
	}

	_, resolved := Resolve("rpcsession", provider, nil)
	if resolved == nil {
		t.Fatalf("expected provider logger")
	}
}

func TestNewTextLogger_FatalDoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	NewTextLogger(&buf, "info").Fatal("unrecoverable", "code", 7)
	if !strings.Contains(buf.String(), "unrecoverable") {
		t.Fatalf("expected fatal record, got %s", buf.String())
	}
}

func TestResolveForJobBridgesLogger(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	resolved, jobLogger := ResolveForJob("rpcsession", &capturingProvider{logger: providerLogger}, nil)
	if resolved.(*capturingLogger).id != "provider" {
		t.Fatalf("expected provider logger")
	}
	if jobLogger == nil {
		t.Fatalf("expected go-job logger bridge")
	}
	jobLogger.Info("prune done", "deleted", 3)
	if providerLogger.lastInfo.msg != "prune done" {
		t.Fatalf("expected bridged info record, got %#v", providerLogger.lastInfo)
	}
	if ToJobLogger(nil) != nil {
		t.Fatalf("expected nil bridge for nil logger")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
