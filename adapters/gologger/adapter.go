package gologger

import (
	"io"
	"os"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// NewTextLogger writes console records at level (debug, info, warn, error)
// to w. Fatal records are logged without exiting the process.
func NewTextLogger(w io.Writer, level string) *glog.BaseLogger {
	if w == nil {
		w = os.Stderr
	}
	return glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLevel(level),
		glog.WithLoggerTypeConsole(),
		glog.WithFatalBehavior(glog.FatalBehaviorLogOnly),
	)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the named glog logger and returns its go-job
// equivalent alongside it.
func ResolveForJob(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.Logger, job.Logger) {
	_, resolved := Resolve(name, provider, logger)
	return resolved, ToJobLogger(resolved)
}
