package command

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rpcsession/core"
)

func TestDeleteMessage_ValidateReturnsRichError(t *testing.T) {
	err := (DeleteMessage{IDs: []string{"a1"}}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorTextBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorTextBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 || validation[0].Field != "object_type" {
		t.Fatalf("expected object_type validation field, got %#v", validation)
	}
	if !core.IsKind(err, core.ErrorKindBadInput) {
		t.Fatalf("expected bad input kind, got %q", core.KindOf(err))
	}
}

func TestCreateCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *CreateCommand
	err := cmd.Execute(context.Background(), CreateMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorTextInternal {
		t.Fatalf("expected %q text code, got %q", core.ErrorTextInternal, rich.TextCode)
	}
}
