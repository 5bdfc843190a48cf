package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Invoker          = InvokerFunc(nil)
	_ BackoffScheduler = LinearBackoffScheduler{}
	_ error            = (*Fault)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
