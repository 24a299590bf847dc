package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/travelbook/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	apiErr := model.NewValidationError([]model.FieldError{
		{Field: "email", Message: "must be a valid email address"},
	})

	WriteErrorResponse(w, http.StatusBadRequest, apiErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	if body.Error != "Validation failed" {
		t.Errorf("error = %q, want %q", body.Error, "Validation failed")
	}
	if body.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidation)
	}
	if len(body.Details) != 1 || body.Details[0].Field != "email" {
		t.Errorf("details = %+v", body.Details)
	}
}

// TestWriteErrorResponse_OmitsEmptyDetails は詳細がない場合にdetailsキーを出力しないことを検証する。
func TestWriteErrorResponse_OmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if raw["error"] != "Route not found" {
		t.Errorf("error = %v, want %q", raw["error"], "Route not found")
	}
	if _, ok := raw["details"]; ok {
		t.Error("details should be omitted when empty")
	}
}

// TestStatusForError はカテゴリからステータスコードへの変換を検証する。
func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewValidationError(nil), http.StatusBadRequest},
		{model.NewRegistrationFailedError(), http.StatusBadRequest},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewInvalidTokenError(), http.StatusUnauthorized},
		{model.NewAccountDeactivatedError(), http.StatusForbidden},
		{model.NewLoginDeactivatedError(), http.StatusUnauthorized},
		{model.NewRoleRequiredError([]model.Role{model.RoleAdmin}), http.StatusForbidden},
		{model.NewSelfModificationError("nope"), http.StatusForbidden},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewBookingNotFoundError(), http.StatusNotFound},
		{model.NewEmailExistsError(), http.StatusConflict},
		{model.NewDuplicateBookingError(), http.StatusConflict},
		{model.NewTooManyAttemptsError(), http.StatusTooManyRequests},
		{model.NewInternalError(), http.StatusInternalServerError},
		{&model.APIError{Code: "X", Category: "unknown"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := StatusForError(tt.err); got != tt.want {
				t.Errorf("StatusForError(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

// TestWriteInternalServerError_GenericMessage は内部エラーが汎用メッセージで返ることを検証する。
func TestWriteInternalServerError_GenericMessage(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Error != "Internal server error" || body.Code != model.ErrCodeInternal {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteInternalServerErrorWithDebug(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerErrorWithDebug(w, "failed to find user: connection refused")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Internal server error" || body.Debug == "" {
		t.Errorf("body = %+v", body)
	}
}
