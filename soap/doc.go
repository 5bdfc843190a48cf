// Package soap implements core.Invoker over SOAP 1.1 envelopes.
//
// Requests carry the session token in a SessionHeader and active call
// options in a CallOptions header. Responses are classified as:
// fault envelope -> *core.Fault, envelope with a body element -> *Result,
// anything else -> malformed.
package soap
