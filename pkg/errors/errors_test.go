package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestUpstreamIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Upstream("identity", internal)

	if err.Error() != "identity request failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if err.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", err.StatusCode)
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}
	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}
	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestCopiesMatchSentinel(t *testing.T) {
	wrapped := ErrUnauthenticated.WithMessage("no session")
	if !stdErrors.Is(wrapped, ErrUnauthenticated) {
		t.Fatal("expected message copy to match sentinel")
	}
	if stdErrors.Is(wrapped, ErrForbidden) {
		t.Fatal("expected different codes not to match")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("email is required")
	if err.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", err.StatusCode)
	}
	if err.Message != "email is required" {
		t.Fatalf("unexpected message %q", err.Message)
	}
}
