package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	t.Parallel()

	if meta := MetadataFor(CodeAuthRequired); meta.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected status for auth required: %d", meta.HTTPStatus)
	}
	if meta := MetadataFor(CodeNetwork); !meta.Retryable {
		t.Fatal("network errors must be retryable")
	}
	if meta := MetadataFor(Code("BOGUS")); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes must map to internal: %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("socket closed")
	err := Wrap(CodeNetwork, cause, "fetch cart")

	if err.Unwrap() != cause {
		t.Fatal("expected cause to be preserved")
	}
	if got := err.Error(); got != "NETWORK_ERROR: fetch cart" {
		t.Fatalf("unexpected error string: %q", got)
	}
}

func TestAsThroughWrappedChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeValidation, "quantity must be at least 1")
	outer := fmt.Errorf("handling request: %w", inner)

	typed := As(outer)
	if typed == nil || typed.Code() != CodeValidation {
		t.Fatalf("expected validation error, got %v", typed)
	}
	if !HasCode(outer, CodeValidation) {
		t.Fatal("HasCode should see through the chain")
	}
	if Retryable(outer) {
		t.Fatal("validation errors are not retryable")
	}
}
