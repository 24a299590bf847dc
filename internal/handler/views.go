package handler

import (
	"github.com/hitoshi/travelbook/internal/middleware"
	"github.com/hitoshi/travelbook/internal/model"
)

// userSummary は登録・作成直後に返すユーザー情報。
type userSummary struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsActive  *bool  `json:"isActive,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func newUserSummary(u *model.User) userSummary {
	return userSummary{
		UID:       u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// userDetail はプロフィール・管理画面で返すユーザー情報。
type userDetail struct {
	UID       string  `json:"uid"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	IsActive  bool    `json:"isActive"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
	LastLogin *string `json:"lastLogin"`
}

func newUserDetail(u *model.User) userDetail {
	return userDetail{
		UID:       u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.Active,
		CreatedAt: formatTime(u.CreatedAt),
		LastLogin: formatTimePtr(u.LastLoginAt),
	}
}

func newUserDetails(users []*model.User) []userDetail {
	out := make([]userDetail, 0, len(users))
	for _, u := range users {
		out = append(out, newUserDetail(u))
	}
	return out
}

func identityDetail(id *middleware.Identity) userDetail {
	return userDetail{
		UID:       id.ID,
		Email:     id.Email,
		Role:      string(id.Role),
		FirstName: id.FirstName,
		LastName:  id.LastName,
		IsActive:  id.Active,
		CreatedAt: formatTime(id.CreatedAt),
		LastLogin: formatTimePtr(id.LastLoginAt),
	}
}

// bookingView は予約のAPI表現。
type bookingView struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	UserEmail   string `json:"userEmail"`
	Place       string `json:"place"`
	Hotel       string `json:"hotel"`
	Date        string `json:"date"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Status      string `json:"status"`
	Created     string `json:"created"`
	Updated     string `json:"updated"`
	UpdatedBy   string `json:"updatedBy,omitempty"`
	CancelledBy string `json:"cancelledBy,omitempty"`
}

func newBookingView(b *model.Booking) bookingView {
	return bookingView{
		ID:          b.ID,
		UserID:      b.UserID,
		UserEmail:   b.UserEmail,
		Place:       b.Destination,
		Hotel:       b.Hotel,
		Date:        b.TravelDate.Format(model.TravelDateLayout),
		Name:        b.ContactName,
		Email:       b.ContactEmail,
		Phone:       b.ContactPhone,
		Status:      string(b.Status),
		Created:     formatTime(b.CreatedAt),
		Updated:     formatTime(b.UpdatedAt),
		UpdatedBy:   b.UpdatedBy,
		CancelledBy: b.CancelledBy,
	}
}

func newBookingViews(bookings []*model.Booking) []bookingView {
	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, newBookingView(b))
	}
	return out
}
