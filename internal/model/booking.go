package model

import "time"

// BookingStatus は予約の状態を表す。
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// BookingStatuses は定義済みの全状態を返す。
func BookingStatuses() []BookingStatus {
	return []BookingStatus{BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted}
}

// IsValid は状態が定義済みの値かどうかを返す。
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	default:
		return false
	}
}

// Cancellable はオーナーによるキャンセルが可能な状態かどうかを返す。
// cancelled と completed はそれ以上キャンセルできない。
func (s BookingStatus) Cancellable() bool {
	return s == BookingPending || s == BookingConfirmed
}

// TravelDateLayout は旅行日の文字列表現。
const TravelDateLayout = "2006-01-02"

// Booking は旅行予約を表す。
type Booking struct {
	ID           string
	UserID       string
	UserEmail    string
	Destination  string
	Hotel        string
	TravelDate   time.Time
	ContactName  string
	ContactEmail string
	ContactPhone string
	Status       BookingStatus
	UpdatedBy    string
	CancelledBy  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BookingEvent は予約ライフサイクルイベントを表す。
// 外部のメッセージブローカーへ発行される。
type BookingEvent struct {
	Type       string        `json:"type"`
	BookingID  string        `json:"bookingId"`
	UserID     string        `json:"userId"`
	Status     BookingStatus `json:"status"`
	Actor      string        `json:"actor,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// 予約イベント種別
const (
	EventBookingCreated       = "booking.created"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingStatusChanged = "booking.status_changed"
	EventBookingDeleted       = "booking.deleted"
)
