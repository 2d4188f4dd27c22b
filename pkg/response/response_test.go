package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	appErrors "github.com/feelize/platform/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	Success(ctx, http.StatusCreated, gin.H{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success flag to be true")
	}
	if resp.Error != "" {
		t.Fatal("expected no error information")
	}
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(2, 10, 21)
	if meta.TotalPages != 3 || meta.Total != 21 || meta.Page != 2 {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestErrorWithAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	Error(ctx, appErrors.ErrUnauthenticated.WithMessage("no session"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected success flag to be false")
	}
	if resp.Message != "no session" || resp.Error != "UNAUTHENTICATED" {
		t.Fatalf("unexpected payload %+v", resp)
	}
}

func TestErrorRedactsInternalDetail(t *testing.T) {
	t.Cleanup(func() { ExposeInternalErrors(false) })

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	Error(ctx, errors.New("database exploded"))

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != appErrors.ErrInternalServer.Message {
		t.Fatalf("expected generic message, got %q", resp.Message)
	}

	ExposeInternalErrors(true)
	rec = httptest.NewRecorder()
	ctx, _ = gin.CreateTestContext(rec)
	Error(ctx, appErrors.Upstream("mail", errors.New("smtp timeout")))

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "mail request failed: smtp timeout" {
		t.Fatalf("expected detailed message, got %q", resp.Message)
	}
}
