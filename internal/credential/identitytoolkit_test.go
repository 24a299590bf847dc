package credential

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newToolkitServer はメソッド名ごとのハンドラーを持つテスト用サーバーを返す。
func newToolkitServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Query().Get("key") != "test-api-key" {
			t.Errorf("key = %q, want %q", r.URL.Query().Get("key"), "test-api-key")
		}
		idx := strings.LastIndex(r.URL.Path, "/")
		method := r.URL.Path[idx+1:]
		h, ok := handlers[method]
		if !ok {
			t.Errorf("unexpected method %q", method)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
}

func writeToolkitError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": 400, "message": message},
	})
}

func newTestToolkitProvider(srv *httptest.Server) *IdentityToolkitProvider {
	return NewIdentityToolkitProvider(IdentityToolkitConfig{
		APIKey:     "test-api-key",
		ProjectID:  "travel-test",
		AdminToken: "admin-token",
		BaseURL:    srv.URL,
	}, srv.Client(), nil)
}

func TestIdentityToolkit_CreateAccount_Success(t *testing.T) {
	srv := newToolkitServer(t, map[string]http.HandlerFunc{
		"accounts:signUp": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["email"] != "alice@example.com" {
				t.Errorf("email = %v, want alice@example.com", body["email"])
			}
			json.NewEncoder(w).Encode(map[string]any{"localId": "uid-123"})
		},
	})
	defer srv.Close()

	id, err := newTestToolkitProvider(srv).CreateAccount(context.Background(), "alice@example.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if id != "uid-123" {
		t.Errorf("id = %q, want %q", id, "uid-123")
	}
}

func TestIdentityToolkit_CreateAccount_RejectsBeforeCallingProvider(t *testing.T) {
	srv := newToolkitServer(t, map[string]http.HandlerFunc{})
	defer srv.Close()
	p := newTestToolkitProvider(srv)

	if _, err := p.CreateAccount(context.Background(), "not-an-email", "Passw0rd!"); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("error = %v, want ErrInvalidEmail", err)
	}
	if _, err := p.CreateAccount(context.Background(), "alice@example.com", "abc"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("error = %v, want ErrWeakPassword", err)
	}
}

func TestIdentityToolkit_ErrorMapping(t *testing.T) {
	tests := []struct {
		message string
		want    error
	}{
		{"EMAIL_EXISTS", ErrDuplicateEmail},
		{"WEAK_PASSWORD : Password should be at least 6 characters", ErrWeakPassword},
		{"INVALID_EMAIL", ErrInvalidEmail},
		{"EMAIL_NOT_FOUND", ErrAccountNotFound},
		{"INVALID_PASSWORD", ErrWrongCredentials},
		{"INVALID_LOGIN_CREDENTIALS", ErrWrongCredentials},
		{"USER_DISABLED", ErrAccountDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			srv := newToolkitServer(t, map[string]http.HandlerFunc{
				"accounts:signInWithPassword": func(w http.ResponseWriter, r *http.Request) {
					writeToolkitError(w, tt.message)
				},
			})
			defer srv.Close()

			_, err := newTestToolkitProvider(srv).VerifyPassword(context.Background(), "alice@example.com", "Passw0rd!")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIdentityToolkit_UnknownError_IsNotSentinel(t *testing.T) {
	srv := newToolkitServer(t, map[string]http.HandlerFunc{
		"accounts:signInWithPassword": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	})
	defer srv.Close()

	_, err := newTestToolkitProvider(srv).VerifyPassword(context.Background(), "alice@example.com", "Passw0rd!")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsAuthFailure(err) {
		t.Errorf("upstream failure must not be treated as auth failure: %v", err)
	}
}

func TestIdentityToolkit_DisableAccount_UsesAdminEndpoint(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := newToolkitServer(t, map[string]http.HandlerFunc{
		"accounts:update": func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(map[string]any{"localId": "uid-1"})
		},
	})
	defer srv.Close()

	if err := newTestToolkitProvider(srv).DisableAccount(context.Background(), "uid-1"); err != nil {
		t.Fatalf("DisableAccount() error = %v", err)
	}
	if gotPath != "/v1/projects/travel-test/accounts:update" {
		t.Errorf("path = %q, want project scoped path", gotPath)
	}
	if gotAuth != "Bearer admin-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer admin-token")
	}
	if gotBody["disableUser"] != true {
		t.Errorf("disableUser = %v, want true", gotBody["disableUser"])
	}
}

func TestIdentityToolkit_DeleteAccount_NotFound(t *testing.T) {
	srv := newToolkitServer(t, map[string]http.HandlerFunc{
		"accounts:delete": func(w http.ResponseWriter, r *http.Request) {
			writeToolkitError(w, "USER_NOT_FOUND")
		},
	})
	defer srv.Close()

	err := newTestToolkitProvider(srv).DeleteAccount(context.Background(), "missing")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestIdentityToolkit_PasswordResetLink_ReturnsOOBLink(t *testing.T) {
	srv := newToolkitServer(t, map[string]http.HandlerFunc{
		"accounts:sendOobCode": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["requestType"] != "PASSWORD_RESET" {
				t.Errorf("requestType = %v, want PASSWORD_RESET", body["requestType"])
			}
			if body["returnOobLink"] != true {
				t.Errorf("returnOobLink = %v, want true", body["returnOobLink"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"email":   "alice@example.com",
				"oobLink": "https://example.com/reset?oobCode=abc",
			})
		},
	})
	defer srv.Close()

	link, err := newTestToolkitProvider(srv).PasswordResetLink(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("PasswordResetLink() error = %v", err)
	}
	if link != "https://example.com/reset?oobCode=abc" {
		t.Errorf("link = %q", link)
	}
}

func TestIdentityToolkit_ConfirmPasswordReset_InvalidCode(t *testing.T) {
	srv := newToolkitServer(t, map[string]http.HandlerFunc{
		"accounts:resetPassword": func(w http.ResponseWriter, r *http.Request) {
			writeToolkitError(w, "EXPIRED_OOB_CODE")
		},
	})
	defer srv.Close()

	err := newTestToolkitProvider(srv).ConfirmPasswordReset(context.Background(), "old-code", "NewPassw0rd")
	if !errors.Is(err, ErrInvalidResetCode) {
		t.Errorf("error = %v, want ErrInvalidResetCode", err)
	}
}
