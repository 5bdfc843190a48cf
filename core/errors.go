package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorTextAuthExhausted     = "RPC_AUTH_EXHAUSTED"
	ErrorTextResponseExhausted = "RPC_RESPONSE_EXHAUSTED"
	ErrorTextSessionExhausted  = "RPC_SESSION_EXHAUSTED"
	ErrorTextRemoteFault       = "RPC_REMOTE_FAULT"
	ErrorTextTransportFailure  = "RPC_TRANSPORT_FAILURE"
	ErrorTextUnsupportedFormat = "RPC_UNSUPPORTED_FORMAT"
	ErrorTextCanceled          = "RPC_CANCELED"
	ErrorTextBadInput          = "RPC_BAD_INPUT"
	ErrorTextInternal          = "RPC_INTERNAL_ERROR"
)

// ErrorKind is the caller-facing failure taxonomy of a client call.
type ErrorKind string

const (
	ErrorKindNone                     ErrorKind = ""
	ErrorKindAuthenticationExhausted  ErrorKind = "AuthenticationExhausted"
	ErrorKindResponseRetriesExhausted ErrorKind = "ResponseRetriesExhausted"
	ErrorKindSessionRetriesExhausted  ErrorKind = "SessionRetriesExhausted"
	ErrorKindRemoteFault              ErrorKind = "RemoteFault"
	ErrorKindTransportFailure         ErrorKind = "TransportFailure"
	ErrorKindUnsupportedFormat        ErrorKind = "UnsupportedFormat"
	ErrorKindCanceled                 ErrorKind = "Canceled"
	ErrorKindBadInput                 ErrorKind = "BadInput"
	ErrorKindInternal                 ErrorKind = "Internal"
)

var errorKindsByText = map[string]ErrorKind{
	ErrorTextAuthExhausted:     ErrorKindAuthenticationExhausted,
	ErrorTextResponseExhausted: ErrorKindResponseRetriesExhausted,
	ErrorTextSessionExhausted:  ErrorKindSessionRetriesExhausted,
	ErrorTextRemoteFault:       ErrorKindRemoteFault,
	ErrorTextTransportFailure:  ErrorKindTransportFailure,
	ErrorTextUnsupportedFormat: ErrorKindUnsupportedFormat,
	ErrorTextCanceled:          ErrorKindCanceled,
	ErrorTextBadInput:          ErrorKindBadInput,
	ErrorTextInternal:          ErrorKindInternal,
}

// KindOf classifies err into the client failure taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if kind, ok := errorKindsByText[strings.TrimSpace(richErr.TextCode)]; ok {
			return kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindCanceled
	}
	var fault *Fault
	if errors.As(err, &fault) {
		return ErrorKindRemoteFault
	}
	return ErrorKindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// FaultFrom returns the remote fault carried by err, if any.
func FaultFrom(err error) (*Fault, bool) {
	var fault *Fault
	if errors.As(err, &fault) && fault != nil {
		return fault, true
	}
	return nil, false
}

func authExhaustedError(principal string, attempts int) *goerrors.Error {
	return goerrors.New("login did not yield a session token", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorTextAuthExhausted).
		WithMetadata(map[string]any{
			"principal": principal,
			"attempts":  attempts,
		})
}

func retriesExhaustedError(operation string, outcome Outcome, budget int, maxRetries int) *goerrors.Error {
	textCode := ErrorTextResponseExhausted
	message := "response retries exhausted"
	if outcome == OutcomeInvalidSession {
		textCode = ErrorTextSessionExhausted
		message = "session retries exhausted"
	}
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"operation":    operation,
			"retry_budget": budget,
			"max_retries":  maxRetries,
		})
}

func remoteFaultError(operation string, fault *Fault) *goerrors.Error {
	err := goerrors.New(fault.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorTextRemoteFault).
		WithMetadata(map[string]any{
			"operation":  operation,
			"fault_code": fault.Code,
		})
	err.Source = fault
	return err
}

// exchangeFailureError maps an invoker error that is not a fault. Context
// cancellation surfaces as Canceled, everything else as TransportFailure.
func exchangeFailureError(ctx context.Context, operation string, source error) *goerrors.Error {
	if (ctx != nil && ctx.Err() != nil) || KindOf(source) == ErrorKindCanceled {
		return canceledError(operation, source)
	}
	return transportFailureError(operation, source)
}

func transportFailureError(operation string, source error) *goerrors.Error {
	message := "transport failure"
	if source != nil {
		message = "transport failure: " + source.Error()
	}
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(ErrorTextTransportFailure).
		WithMetadata(map[string]any{
			"operation": operation,
		})
	err.Source = source
	return err
}

func canceledError(operation string, source error) *goerrors.Error {
	err := goerrors.New("call canceled", goerrors.CategoryOperation).
		WithCode(499).
		WithTextCode(ErrorTextCanceled).
		WithMetadata(map[string]any{
			"operation": operation,
		})
	err.Source = source
	return err
}

func badInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorTextBadInput)
}

// UnsupportedFormatError reports a response format with no registered codec.
func UnsupportedFormatError(contentType string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("unsupported response format %q", contentType), goerrors.CategoryBadInput).
		WithCode(http.StatusUnsupportedMediaType).
		WithTextCode(ErrorTextUnsupportedFormat).
		WithMetadata(map[string]any{
			"content_type": contentType,
		})
}

// mapClientError normalizes errors that escaped the classified call paths,
// such as configuration and validation failures.
func mapClientError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return ensureErrorEnvelope(badInputError(err.Error()))
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = errorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultErrorTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultErrorTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorTextBadInput
	case goerrors.CategoryAuth:
		return ErrorTextAuthExhausted
	case goerrors.CategoryExternal:
		return ErrorTextTransportFailure
	default:
		return ErrorTextInternal
	}
}

func errorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
