// Package core contains the session-managed RPC client: domain types, the
// session manager, the retrying call executor, and batch-mode call options.
// Wire-level adapters (SOAP envelopes, HTTP transports, SQL stores) depend on
// this package; core must not depend on them.
package core
