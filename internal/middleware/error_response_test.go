package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kcasl/Pedigree-App/internal/model"
)

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidCredential, http.StatusUnauthorized},
		{model.ErrCodeVerificationFailed, http.StatusUnauthorized},
		{model.ErrCodeMissingRequiredField, http.StatusBadRequest},
		{model.ErrCodeInvalidPayload, http.StatusBadRequest},
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeForbidden, http.StatusForbidden},
		{model.ErrCodeUserNotFound, http.StatusNotFound},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusForCode(tt.code); got != tt.want {
			t.Errorf("StatusForCode(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestWriteAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, model.NewForbiddenError())

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != model.ErrCodeForbidden {
		t.Errorf("Code = %q, want %q", body.Code, model.ErrCodeForbidden)
	}
	if body.Message == "" || body.Action == "" {
		t.Error("message and action must be populated")
	}
}

func TestWriteInternalServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternalServerError(rec)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %q, want INTERNAL_ERROR", body.Code)
	}
}
