package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// Pinger はDB疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックとAPI概要のHTTPハンドラー。
type HealthHandler struct {
	db          Pinger
	environment string
	now         func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。dbがnilの場合は疎通確認を行わない。
func NewHealthHandler(db Pinger, environment string) *HealthHandler {
	return &HealthHandler{db: db, environment: environment, now: time.Now}
}

// Health はサーバーの稼働状態を返す。DBに接続できない場合は503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "OK", http.StatusOK
	message := "Server is running"

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			status, code = "UNAVAILABLE", http.StatusServiceUnavailable
			message = "Database is unreachable"
		}
	}

	writeJSON(w, code, map[string]string{
		"status":      status,
		"message":     message,
		"timestamp":   formatTime(h.now()),
		"environment": h.environment,
	})
}

// Index はAPIのエンドポイント一覧を返す。
// GET /api
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Travel Booking API",
		"version": "1.0.0",
		"endpoints": map[string]map[string]string{
			"auth": {
				"POST /api/auth/register":               "Register new user",
				"POST /api/auth/login":                  "User login",
				"GET /api/auth/profile":                 "Get current user",
				"POST /api/auth/logout":                 "User logout",
				"POST /api/auth/reset-password":         "Request password reset",
				"POST /api/auth/reset-password/confirm": "Confirm password reset",
				"GET /api/auth/verify-token":            "Verify token",
			},
			"admin": {
				"GET /api/admin/dashboard":             "Admin dashboard data",
				"GET /api/admin/users":                 "Get all users",
				"GET /api/admin/users/:uid":            "Get user details",
				"POST /api/admin/create-admin":         "Create admin user",
				"PUT /api/admin/users/:uid/role":       "Update user role",
				"PUT /api/admin/users/:uid/status":     "Update user status",
				"DELETE /api/admin/users/:uid":         "Delete user",
				"GET /api/admin/bookings":              "Get all bookings",
				"PATCH /api/admin/bookings/:id/status": "Update booking status",
				"DELETE /api/admin/bookings/:id":       "Delete booking",
			},
			"bookings": {
				"POST /api/bookings":             "Create booking",
				"GET /api/bookings/my-bookings":  "Get own bookings",
				"PATCH /api/bookings/:id/cancel": "Cancel booking",
			},
		},
	})
}
