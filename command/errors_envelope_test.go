package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-crm-sync/core"
)

func TestSyncByReferenceMessage_ValidateReturnsRichError(t *testing.T) {
	err := (SyncByReferenceMessage{}).Validate()
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
	if rich.TextCode != core.SyncErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.SyncErrorBadInput, rich.TextCode)
	}
}

func TestSyncByReferenceCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *SyncByReferenceCommand
	err := cmd.Execute(context.Background(), SyncByReferenceMessage{})
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
}
