package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/travelbook/internal/booking"
	"github.com/hitoshi/travelbook/internal/middleware"
	"github.com/hitoshi/travelbook/internal/model"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	Create(ctx context.Context, actor booking.Actor, in booking.CreateInput) (*model.Booking, error)
	ListMine(ctx context.Context, actor booking.Actor) ([]*model.Booking, error)
	Cancel(ctx context.Context, actor booking.Actor, id string) error
	List(ctx context.Context, filter booking.ListFilter) (*booking.ListResult, error)
	UpdateStatus(ctx context.Context, actor booking.Actor, id, status string) (*model.Booking, error)
	Delete(ctx context.Context, actor booking.Actor, id string) error
}

// BookingHandler は利用者向け予約のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
	errors  errorResponder
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface, debug bool) *BookingHandler {
	return &BookingHandler{service: service, errors: errorResponder{debug: debug}}
}

type createBookingRequest struct {
	Place string `json:"place"`
	Hotel string `json:"hotel"`
	Date  string `json:"date"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func actorOf(id *middleware.Identity) booking.Actor {
	return booking.Actor{UserID: id.ID, Email: id.Email, Role: id.Role}
}

// Create は予約を作成する。
// POST /bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.Create(r.Context(), actorOf(id), booking.CreateInput{
		Destination:  req.Place,
		Hotel:        req.Hotel,
		TravelDate:   req.Date,
		ContactName:  req.Name,
		ContactEmail: req.Email,
		ContactPhone: req.Phone,
	})
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "booking": newBookingView(b)})
}

// ListMine は自分の予約一覧を返す。
// GET /bookings/my-bookings
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	bookings, err := h.service.ListMine(r.Context(), actorOf(id))
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": newBookingViews(bookings)})
}

// Cancel は予約をキャンセルする。
// PATCH /bookings/{id}/cancel
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), actorOf(id), chi.URLParam(r, "id")); err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Booking cancelled successfully"})
}

// compile-time interface check
var _ BookingServiceInterface = (*booking.Service)(nil)
