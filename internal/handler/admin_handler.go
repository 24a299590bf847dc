package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/travelbook/internal/booking"
	"github.com/hitoshi/travelbook/internal/model"
	"github.com/hitoshi/travelbook/internal/user"
)

// AdminServiceInterface は管理者ハンドラーが必要とするユーザー管理サービスインターフェース。
type AdminServiceInterface interface {
	Dashboard(ctx context.Context) (*user.Dashboard, error)
	ListUsers(ctx context.Context, filter user.ListFilter) (*user.ListResult, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	CreateAdmin(ctx context.Context, actorID string, in user.CreateAdminInput) (*model.User, error)
	UpdateRole(ctx context.Context, actorID, id string, role model.Role) (*model.User, error)
	UpdateStatus(ctx context.Context, actorID, id string, active bool) (*model.User, error)
	DeleteUser(ctx context.Context, actorID, id string) (*model.User, error)
}

// AdminHandler は管理者向けのHTTPハンドラー。
type AdminHandler struct {
	users    AdminServiceInterface
	bookings BookingServiceInterface
	errors   errorResponder
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(users AdminServiceInterface, bookings BookingServiceInterface, debug bool) *AdminHandler {
	return &AdminHandler{users: users, bookings: bookings, errors: errorResponder{debug: debug}}
}

type createAdminRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type updateStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

type updateBookingStatusRequest struct {
	Status string `json:"status"`
}

// queryInt はクエリパラメータを整数として返す。未指定・不正値の場合は0を返す。
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// Dashboard は管理者ダッシュボードのデータを返す。
// GET /admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.users.Dashboard(r.Context())
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	bookingStats := map[string]int{"total": 0}
	for _, s := range model.BookingStatuses() {
		n := d.BookingCounts[s]
		bookingStats[string(s)] = n
		bookingStats["total"] += n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"statistics": map[string]int{
			"totalUsers":    d.Statistics.TotalUsers,
			"adminUsers":    d.Statistics.AdminUsers,
			"normalUsers":   d.Statistics.NormalUsers,
			"activeUsers":   d.Statistics.ActiveUsers,
			"inactiveUsers": d.Statistics.InactiveUsers,
		},
		"recentUsers":  newUserDetails(d.RecentUsers),
		"bookingStats": bookingStats,
	})
}

// ListUsers はユーザー一覧を返す。
// GET /admin/users?page=&limit=&role=&status=&search=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.users.ListUsers(r.Context(), user.ListFilter{
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": newUserDetails(res.Users),
		"pagination": map[string]any{
			"currentPage": res.Pagination.CurrentPage,
			"totalPages":  res.Pagination.TotalPages,
			"totalUsers":  res.Pagination.TotalUsers,
			"hasNext":     res.Pagination.HasNext,
			"hasPrev":     res.Pagination.HasPrev,
		},
	})
}

// GetUser はユーザーの詳細を返す。
// GET /admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}
	detail := newUserDetail(u)
	detail.UpdatedAt = formatTime(u.UpdatedAt)
	writeJSON(w, http.StatusOK, map[string]any{"user": detail})
}

// CreateAdmin は管理者アカウントを作成する。
// POST /admin/create-admin
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req createAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.CreateAdmin(r.Context(), id.ID, user.CreateAdminInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	summary := newUserSummary(u)
	summary.CreatedAt = formatTime(u.CreatedAt)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Admin user created successfully",
		"user":    summary,
	})
}

// UpdateRole はユーザーのロールを変更する。
// PUT /admin/users/{id}/role
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.UpdateRole(r.Context(), id.ID, chi.URLParam(r, "id"), model.Role(req.Role))
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User role updated successfully",
		"user": map[string]string{
			"uid":   u.ID,
			"email": u.Email,
			"role":  string(u.Role),
		},
	})
}

// UpdateStatus はユーザーを有効化または無効化する。
// PUT /admin/users/{id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		h.errors.handle(w, r, model.NewValidationError([]model.FieldError{{Field: "isActive", Message: "isActive must be a boolean"}}))
		return
	}

	u, err := h.users.UpdateStatus(r.Context(), id.ID, chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	verb := "deactivated"
	if u.Active {
		verb = "activated"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("User %s successfully", verb),
		"user": map[string]any{
			"uid":      u.ID,
			"email":    u.Email,
			"isActive": u.Active,
		},
	})
}

// DeleteUser はユーザーを削除する。
// DELETE /admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	u, err := h.users.DeleteUser(r.Context(), id.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User deleted successfully",
		"deletedUser": map[string]string{
			"uid":   u.ID,
			"email": u.Email,
		},
	})
}

// ListBookings は全予約の一覧を返す。
// GET /admin/bookings?page=&limit=&status=&search=
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.bookings.List(r.Context(), booking.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": newBookingViews(res.Bookings),
		"pagination": map[string]int{
			"page":  res.Pagination.Page,
			"limit": res.Pagination.Limit,
			"total": res.Pagination.Total,
			"pages": res.Pagination.Pages,
		},
		"stats": map[string]int{
			"total":     res.Stats.Total,
			"pending":   res.Stats.Pending,
			"confirmed": res.Stats.Confirmed,
			"cancelled": res.Stats.Cancelled,
			"completed": res.Stats.Completed,
		},
	})
}

// UpdateBookingStatus は予約の状態を変更する。
// PATCH /admin/bookings/{id}/status
func (h *AdminHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req updateBookingStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.bookings.UpdateStatus(r.Context(), actorOf(id), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Booking status updated successfully",
		"booking": newBookingView(b),
	})
}

// DeleteBooking は予約を削除する。
// DELETE /admin/bookings/{id}
func (h *AdminHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	if err := h.bookings.Delete(r.Context(), actorOf(id), chi.URLParam(r, "id")); err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Booking deleted successfully"})
}

// compile-time interface check
var _ AdminServiceInterface = (*user.Service)(nil)
