// Package booking は旅行予約の作成・照会・キャンセルと管理者向けの予約管理を提供する。
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/hitoshi/travelbook/internal/model"
	"github.com/hitoshi/travelbook/internal/repository"
	"github.com/hitoshi/travelbook/internal/validator"
)

// 管理者向け一覧のページング既定値
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
	statusFilterAll  = "all"
)

// Publisher は予約イベントの配信先。
type Publisher interface {
	Publish(ctx context.Context, event model.BookingEvent) error
}

// Sanitizer は利用者入力のテキストを無害化する。
type Sanitizer interface {
	Sanitize(input string) string
}

// EventRecorder は予約イベントの発行結果を記録する。
type EventRecorder interface {
	RecordBookingEvent(eventType string)
	RecordEventPublishFailure(topic string)
}

// Actor は操作を行う認証済みユーザー。
type Actor struct {
	UserID string
	Email  string
	Role   model.Role
}

// IsAdmin は操作者が管理者かどうかを返す。
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// CreateInput は予約作成の入力。
type CreateInput struct {
	Destination  string
	Hotel        string
	TravelDate   string
	ContactName  string
	ContactEmail string
	ContactPhone string
}

// ListFilter は管理者向け予約一覧の絞り込み条件。
type ListFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// Pagination はページング情報。
type Pagination struct {
	Page  int
	Limit int
	Total int
	Pages int
}

// Stats は絞り込み後の予約の状態別件数。
type Stats struct {
	Total     int
	Pending   int
	Confirmed int
	Cancelled int
	Completed int
}

// ListResult は管理者向け予約一覧の結果。
type ListResult struct {
	Bookings   []*model.Booking
	Pagination Pagination
	Stats      Stats
}

// Config は予約サービスの設定。
type Config struct {
	// EventTopic は発行失敗をメトリクスに記録する際のトピック名。
	EventTopic string
	// Now はテスト用に差し替え可能な時刻関数。nilの場合はtime.Now。
	Now func() time.Time
}

// Service は予約に関するビジネスロジックを提供する。
type Service struct {
	repo      repository.BookingRepository
	publisher Publisher
	sanitizer Sanitizer
	recorder  EventRecorder
	config    Config
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(repo repository.BookingRepository, publisher Publisher, sanitizer Sanitizer, recorder EventRecorder, config Config) *Service {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		sanitizer: sanitizer,
		recorder:  recorder,
		config:    config,
	}
}

func (s *Service) clean(v string) string {
	return s.sanitizer.Sanitize(strings.TrimSpace(v))
}

// Create は予約を作成する。
// 同一ユーザー・同一目的地・同一日付の予約がキャンセル済みを含めて存在する場合は409とする。
// 重複チェックはベストエフォートで、並行作成までは防がない。
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*model.Booking, error) {
	in.Destination = s.clean(in.Destination)
	in.Hotel = s.clean(in.Hotel)
	in.TravelDate = strings.TrimSpace(in.TravelDate)
	in.ContactName = s.clean(in.ContactName)
	in.ContactEmail = model.NormalizeEmail(in.ContactEmail)
	in.ContactPhone = s.clean(in.ContactPhone)

	var travelDate time.Time
	errs := validation.Errors{
		"place": validation.Validate(in.Destination,
			validation.Required.Error("Destination is required"),
			validation.Length(1, 100).Error("Destination must be less than 100 characters"),
		),
		"hotel": validation.Validate(in.Hotel,
			validation.Length(0, 100).Error("Hotel must be less than 100 characters"),
		),
		"date": validation.Validate(in.TravelDate,
			validation.Required.Error("Travel date is required"),
			validation.By(func(any) error {
				d, err := time.Parse(model.TravelDateLayout, in.TravelDate)
				if err != nil {
					return errors.New("Travel date must be in YYYY-MM-DD format")
				}
				travelDate = d
				return nil
			}),
		),
		"name": validation.Validate(in.ContactName,
			validation.Required.Error("Name is required"),
			validation.Length(1, 100).Error("Name must be less than 100 characters"),
		),
		"email": validation.Validate(in.ContactEmail,
			is.Email.Error("Valid email is required"),
		),
	}
	if in.ContactEmail == "" && in.ContactPhone == "" {
		errs["contact"] = errors.New("Either email or phone is required")
	}
	if apiErr := validator.Collect(errs); apiErr != nil {
		return nil, apiErr
	}

	dup, err := s.repo.FindDuplicate(ctx, actor.UserID, in.Destination, travelDate)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate booking: %w", err)
	}
	if dup != nil {
		return nil, model.NewDuplicateBookingError()
	}

	now := s.config.Now().UTC()
	b := &model.Booking{
		UserID:       actor.UserID,
		UserEmail:    actor.Email,
		Destination:  in.Destination,
		Hotel:        in.Hotel,
		TravelDate:   travelDate,
		ContactName:  in.ContactName,
		ContactEmail: in.ContactEmail,
		ContactPhone: in.ContactPhone,
		Status:       model.BookingPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.publish(ctx, model.EventBookingCreated, b, actor.UserID)
	return b, nil
}

// ListMine は操作者自身の予約を新しい順に返す。
func (s *Service) ListMine(ctx context.Context, actor Actor) ([]*model.Booking, error) {
	bookings, err := s.repo.ListByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// Cancel は予約をキャンセルする。予約の所有者または管理者のみ実行できる。
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) error {
	b, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if b.UserID != actor.UserID && !actor.IsAdmin() {
		return model.NewForbiddenError("Unauthorized to cancel this booking")
	}
	if !b.Status.Cancellable() {
		return model.NewBookingNotCancellableError(b.Status)
	}

	if err := s.repo.Cancel(ctx, id, actor.Email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewBookingNotFoundError()
		}
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	b.Status = model.BookingCancelled
	b.CancelledBy = actor.Email

	s.publish(ctx, model.EventBookingCancelled, b, actor.UserID)
	return nil
}

// List は管理者向けに絞り込み・ページング済みの予約一覧と状態別件数を返す。
// 件数は検索条件を適用した後、ページングを適用する前の集合から数える。
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultPageLimit
	}
	if filter.Limit > MaxPageLimit {
		filter.Limit = MaxPageLimit
	}

	var status model.BookingStatus
	if filter.Status != "" && filter.Status != statusFilterAll {
		status = model.BookingStatus(filter.Status)
		if !status.IsValid() {
			return nil, validator.Field("status", "Invalid booking status")
		}
	}

	all, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*model.Booking, 0, len(all))
	var stats Stats
	for _, b := range all {
		if search != "" && !matchesSearch(b, search) {
			continue
		}
		matched = append(matched, b)
		stats.Total++
		switch b.Status {
		case model.BookingPending:
			stats.Pending++
		case model.BookingConfirmed:
			stats.Confirmed++
		case model.BookingCancelled:
			stats.Cancelled++
		case model.BookingCompleted:
			stats.Completed++
		}
	}

	total := len(matched)
	start, end := pageBounds(filter.Page, filter.Limit, total)

	return &ListResult{
		Bookings: matched[start:end],
		Pagination: Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: (total + filter.Limit - 1) / filter.Limit,
		},
		Stats: stats,
	}, nil
}

func matchesSearch(b *model.Booking, search string) bool {
	return strings.Contains(strings.ToLower(b.ContactName), search) ||
		strings.Contains(strings.ToLower(b.ContactEmail), search) ||
		strings.Contains(strings.ToLower(b.Destination), search) ||
		strings.Contains(strings.ToLower(b.Hotel), search)
}

// UpdateStatus は管理者が予約の状態を変更する。状態遷移に制約はない。
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id, status string) (*model.Booking, error) {
	next := model.BookingStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.IsValid() {
		return nil, validator.Field("status", "Status must be one of pending, confirmed, cancelled, completed")
	}

	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, next, actor.Email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewBookingNotFoundError()
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	b.Status = next
	b.UpdatedBy = actor.Email
	b.UpdatedAt = s.config.Now().UTC()

	s.publish(ctx, model.EventBookingStatusChanged, b, actor.UserID)
	return b, nil
}

// Delete は管理者が予約を削除する。
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	b, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewBookingNotFoundError()
		}
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	s.publish(ctx, model.EventBookingDeleted, b, actor.UserID)
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*model.Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	if b == nil {
		return nil, model.NewBookingNotFoundError()
	}
	return b, nil
}

// publish は予約イベントを発行する。発行の失敗はログに記録するのみで呼び出し元には返さない。
func (s *Service) publish(ctx context.Context, eventType string, b *model.Booking, actorID string) {
	event := model.BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		UserID:     b.UserID,
		Status:     b.Status,
		Actor:      actorID,
		OccurredAt: s.config.Now().UTC(),
	}
	if s.recorder != nil {
		s.recorder.RecordBookingEvent(eventType)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Error("failed to publish booking event",
			slog.String("type", eventType),
			slog.String("booking_id", b.ID),
			slog.String("error", err.Error()),
		)
		if s.recorder != nil {
			s.recorder.RecordEventPublishFailure(s.config.EventTopic)
		}
	}
}

func pageBounds(page, limit, total int) (start, end int) {
	if page-1 > total/limit {
		return total, total
	}
	start = min((page-1)*limit, total)
	return start, start + min(limit, total-start)
}
