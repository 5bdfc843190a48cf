package soap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rpcsession/core"
)

// Invoker posts SOAP envelopes to Endpoint through Transport.
type Invoker struct {
	Endpoint  string
	Namespace string
	Transport core.TransportAdapter
}

func NewInvoker(endpoint string, namespace string, transport core.TransportAdapter) (*Invoker, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, goerrors.New("soap: endpoint is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorTextBadInput)
	}
	if transport == nil {
		return nil, goerrors.New("soap: transport is required", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorTextInternal)
	}
	return &Invoker{
		Endpoint:  strings.TrimSpace(endpoint),
		Namespace: strings.TrimSpace(namespace),
		Transport: transport,
	}, nil
}

func (i *Invoker) Invoke(ctx context.Context, inv core.Invocation) (core.Response, error) {
	if i == nil || i.Transport == nil {
		return core.Response{}, fmt.Errorf("soap: invoker is not configured")
	}
	payload, err := EncodeEnvelope(i.Namespace, inv)
	if err != nil {
		return core.Response{}, err
	}
	response := core.Response{Exchange: core.Exchange{Sent: payload}}

	res, err := i.Transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    i.Endpoint,
		Headers: map[string]string{
			"SOAPAction": inv.Operation,
		},
		Body: payload,
		Metadata: map[string]any{
			"operation": inv.Operation,
			"call_id":   inv.CallID,
			"attempt":   inv.Attempt,
		},
	})
	if err != nil {
		return response, err
	}
	response.StatusCode = res.StatusCode
	response.Exchange.Received = res.Body

	decoded, ok := decodeEnvelope(res.Body)
	switch {
	case !ok:
		response.Malformed = true
		return response, nil
	case decoded.fault != nil:
		return response, decoded.fault
	case res.StatusCode < 200 || res.StatusCode > 299:
		return response, goerrors.New(
			fmt.Sprintf("soap: unexpected status %d for %s", res.StatusCode, inv.Operation),
			goerrors.CategoryExternal,
		).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ErrorTextTransportFailure).
			WithMetadata(map[string]any{"status_code": res.StatusCode, "operation": inv.Operation})
	}
	response.Payload = decoded.result
	return response, nil
}

// ResetConnection resets the transport when it supports it.
func (i *Invoker) ResetConnection() error {
	if i == nil {
		return nil
	}
	if resetter, ok := i.Transport.(core.ConnectionResetter); ok {
		return resetter.ResetConnection()
	}
	return nil
}

var (
	_ core.Invoker            = (*Invoker)(nil)
	_ core.ConnectionResetter = (*Invoker)(nil)
)
