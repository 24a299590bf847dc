package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/travelbook/internal/middleware"
	"github.com/hitoshi/travelbook/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Production        bool
	Environment       string
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Gateway           *middleware.AuthGateway
	HTTPMetrics       middleware.HTTPMetricsRecorder // nilの場合はHTTPメトリクスを記録しない
	MetricsHandler    http.Handler                   // nilの場合は/metricsを公開しない
	DB                Pinger

	// サービス
	AuthService    AuthServiceInterface
	AdminService   AdminServiceInterface
	BookingService BookingServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → RealIP → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// 各ルートはルート直下と/api配下の両方に公開する。
// 認証ルート（/auth/*）には認証用のより厳しいレート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debug := !deps.Production

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Production))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	// サブルーターはMount時に親のハンドラーを引き継ぐため、ルート定義より先に設定する
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	gw := deps.Gateway
	health := NewHealthHandler(deps.DB, deps.Environment)
	authHandler := NewAuthHandler(deps.AuthService, debug)
	adminHandler := NewAdminHandler(deps.AdminService, deps.BookingService, debug)
	bookingHandler := NewBookingHandler(deps.BookingService, debug)

	mount := func(r chi.Router) {
		r.Get("/health", health.Health)

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/reset-password", authHandler.RequestPasswordReset)
			r.Post("/reset-password/confirm", authHandler.ConfirmPasswordReset)

			r.Group(func(r chi.Router) {
				r.Use(gw.Authenticate, gw.RequireAuthenticated)
				r.Get("/profile", authHandler.Profile)
				r.Post("/logout", authHandler.Logout)
				r.Get("/verify-token", authHandler.VerifyToken)
			})
		})

		// 管理者
		r.Route("/admin", func(r chi.Router) {
			r.Use(gw.Authenticate, gw.RequireAdmin)

			r.Get("/dashboard", adminHandler.Dashboard)
			r.Post("/create-admin", adminHandler.CreateAdmin)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", adminHandler.ListUsers)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", adminHandler.GetUser)
					r.Delete("/", adminHandler.DeleteUser)
					r.Put("/role", adminHandler.UpdateRole)
					r.Put("/status", adminHandler.UpdateStatus)
				})
			})

			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", adminHandler.ListBookings)
				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", adminHandler.DeleteBooking)
					r.Patch("/status", adminHandler.UpdateBookingStatus)
				})
			})
		})

		// 予約
		r.Route("/bookings", func(r chi.Router) {
			r.Use(gw.Authenticate, gw.RequireAuthenticated)

			r.Post("/", bookingHandler.Create)
			r.Get("/my-bookings", bookingHandler.ListMine)
			r.Patch("/{id}/cancel", bookingHandler.Cancel)
		})
	}

	r.Group(mount)
	r.Route("/api", func(r chi.Router) {
		r.Get("/", health.Index)
		mount(r)
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteAPIError(w, model.NewRouteNotFoundError())
}
