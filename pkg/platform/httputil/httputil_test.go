package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "nftform/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error hides message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "oups" {
			t.Fatalf("expected generic error, got %q", body["error"])
		}
	})

	t.Run("uncoded error is treated as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("boom"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"oups"`) {
			t.Fatalf("expected generic error body, got %s", w.Body.String())
		}
	})

	t.Run("invalid input includes message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "wrong fields"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "wrong fields" {
			t.Fatalf("expected wrong fields, got %q", body["error"])
		}
	})

	t.Run("conflict maps to bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeConflict, "email exists"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

type probeRequest struct {
	Email *string `json:"email"`
}

func (p *probeRequest) Validate() error {
	if p.Email == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "missing email")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("decodes text/plain bodies", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}`))
		r.Header.Set("Content-Type", "text/plain")

		req, err := DecodeAndPrepare[probeRequest](r, "wrong fields")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *req.Email != "a@x.com" {
			t.Fatalf("unexpected email %q", *req.Email)
		}
	})

	t.Run("malformed JSON is invalid input", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bad`))

		_, err := DecodeAndPrepare[probeRequest](r, "wrong fields")
		if !dErrors.Is(err, dErrors.CodeInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})

	t.Run("trailing data is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"} {}`))

		_, err := DecodeAndPrepare[probeRequest](r, "wrong fields")
		if !dErrors.Is(err, dErrors.CodeInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})

	t.Run("validation error is returned as is", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))

		_, err := DecodeAndPrepare[probeRequest](r, "wrong fields")
		if err == nil || err.Error() != "missing email" {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
