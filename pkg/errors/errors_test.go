package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeInvalidAmount, status: http.StatusBadRequest, publicMsg: "booking amount out of range", detailsOK: true},
		{code: CodePriceMismatch, status: http.StatusUnprocessableEntity, publicMsg: "quoted total does not match catalog price", detailsOK: true},
		{code: CodeDocumentUnavailable, status: http.StatusNotFound, publicMsg: "terms document unavailable"},
		{code: CodeCodeMismatch, status: http.StatusBadRequest, publicMsg: "verification code incorrect", detailsOK: true},
		{code: CodeChallengeExpired, status: http.StatusGone, publicMsg: "challenge expired or locked"},
		{code: CodeSessionAlreadyOpen, status: http.StatusConflict, publicMsg: "a checkout session is already open", detailsOK: true},
		{code: CodePaymentNotCaptured, status: http.StatusPaymentRequired, publicMsg: "payment not captured", retryable: true, detailsOK: true},
		{code: CodeAlreadySettled, status: http.StatusConflict, publicMsg: "reservation already settled"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestIsMatchesCodeThroughChain(t *testing.T) {
	cause := New(CodePriceMismatch, "catalog disagrees")
	if !Is(cause, CodePriceMismatch) {
		t.Fatalf("Is failed on direct error")
	}
	if Is(cause, CodeInvalidAmount) {
		t.Fatalf("Is matched the wrong code")
	}
	if Is(nil, CodePriceMismatch) {
		t.Fatalf("Is(nil) should be false")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeAlreadySettled, "paid twice")
	if got := As(err); got == nil || got.Code() != CodeAlreadySettled {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}
