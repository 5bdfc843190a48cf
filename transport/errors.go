package transport

import (
	"context"
	"errors"
	"net"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rpcsession/core"
)

// Failure classes reported under the "failure" metadata key of exchange errors.
const (
	FailureTimeout    = "timeout"
	FailureCanceled   = "canceled"
	FailureConnection = "connection"
)

func transportError(message string, category goerrors.Category, code int, metadata map[string]any) error {
	return withMetadata(
		goerrors.New(message, category).WithCode(code).WithTextCode(textCodeFor(category)),
		metadata,
	)
}

func transportWrapError(source error, category goerrors.Category, message string, code int, metadata map[string]any) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	return withMetadata(
		goerrors.Wrap(source, category, message).WithCode(code).WithTextCode(textCodeFor(category)),
		metadata,
	)
}

// exchangeError wraps a failed round trip. A failure caused by the caller's
// context carries the canceled text code so it is never retried as a
// transport failure.
func exchangeError(ctx context.Context, source error, metadata map[string]any) error {
	metadata = cloneMetadata(metadata)
	class := classifyFailure(ctx, source)
	metadata["failure"] = class
	if class == FailureCanceled {
		return withMetadata(
			goerrors.Wrap(source, goerrors.CategoryExternal, "transport: exchange canceled").
				WithCode(499).
				WithTextCode(core.ErrorTextCanceled),
			metadata,
		)
	}
	message := "transport: execute http request"
	if class == FailureTimeout {
		message = "transport: http exchange timed out"
	}
	return transportWrapError(source, goerrors.CategoryExternal, message, http.StatusBadGateway, metadata)
}

func classifyFailure(ctx context.Context, err error) string {
	if ctx != nil && ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return FailureTimeout
		}
		return FailureCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureConnection
}

func withMetadata(err *goerrors.Error, metadata map[string]any) error {
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func textCodeFor(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorTextBadInput
	case goerrors.CategoryExternal:
		return core.ErrorTextTransportFailure
	}
	return core.ErrorTextInternal
}
