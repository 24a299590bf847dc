package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/travelbook/internal/model"
)

// newChainRouter はアプリケーションと同じ順序でミドルウェアを積んだルーターを返す。
func newChainRouter(t *testing.T, logBuf *bytes.Buffer, resolver UserResolver) (*chi.Mux, *mockRecorder) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	rec := &mockRecorder{}
	gw := NewAuthGateway(newTestCodec(time.Now()), resolver, rec, logger)

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewSecurityHeadersMiddleware(false))
	r.Use(NewCORSMiddleware("http://localhost:3000"))

	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	r.Group(func(r chi.Router) {
		r.Use(gw.Authenticate)
		r.With(gw.RequireAdmin).Get("/admin/dashboard", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.With(gw.RequireAuthenticated).Get("/bookings/my-bookings", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r, rec
}

// lastLogEntry はバッファ中の最後のJSONログ行を返す。
func lastLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("failed to parse log line: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestMiddlewareChain_AdminRouteForRegularUser_Returns403(t *testing.T) {
	var logBuf bytes.Buffer
	resolver := &mockUserResolver{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return activeUser(id, model.RoleUser), nil
		},
	}
	r, rec := newChainRouter(t, &logBuf, resolver)

	codec := newTestCodec(time.Now())
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, codec, "u-1", model.RoleUser))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if rec.last() != OutcomeForbidden {
		t.Errorf("outcome = %q, want %q", rec.last(), OutcomeForbidden)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied on error responses")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("CORS headers should be applied on error responses")
	}

	entry := lastLogEntry(t, &logBuf)
	if entry["msg"] != "http_request" {
		t.Fatalf("last log msg = %v, want http_request", entry["msg"])
	}
	if entry["user_id"] != "u-1" {
		t.Errorf("access log user_id = %v, want u-1", entry["user_id"])
	}
	if entry["request_id"] == nil || entry["request_id"] == "" {
		t.Error("access log should carry a request id")
	}
}

func TestMiddlewareChain_AuthenticatedUser_ReachesHandler(t *testing.T) {
	var logBuf bytes.Buffer
	resolver := &mockUserResolver{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return activeUser(id, model.RoleUser), nil
		},
	}
	r, _ := newChainRouter(t, &logBuf, resolver)

	codec := newTestCodec(time.Now())
	req := httptest.NewRequest(http.MethodGet, "/bookings/my-bookings", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, codec, "u-2", model.RoleUser))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestMiddlewareChain_NoToken_Returns401(t *testing.T) {
	var logBuf bytes.Buffer
	r, _ := newChainRouter(t, &logBuf, &mockUserResolver{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/my-bookings", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMiddlewareChain_Panic_Returns500JSON(t *testing.T) {
	var logBuf bytes.Buffer
	r, _ := newChainRouter(t, &logBuf, &mockUserResolver{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	var parsed ErrorResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("panic response should be JSON: %v (%s)", err, body)
	}
	if parsed.Error != "Internal server error" {
		t.Errorf("error = %q", parsed.Error)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("panic recovered")) {
		t.Error("expected panic to be logged")
	}
}

func TestSecurityHeaders_ProductionAddsHSTS(t *testing.T) {
	handler := NewSecurityHeadersMiddleware(true)(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header in production")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", w.Header().Get("X-Frame-Options"))
	}

	dev := NewSecurityHeadersMiddleware(false)(okHandler())
	w = httptest.NewRecorder()
	dev.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set outside production")
	}
}
