// Package user は管理者向けのユーザー管理ロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/hitoshi/travelbook/internal/credential"
	"github.com/hitoshi/travelbook/internal/model"
	"github.com/hitoshi/travelbook/internal/repository"
	"github.com/hitoshi/travelbook/internal/validator"
)

// ページングの既定値
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	RecentUsersLimit = 10
	filterAll        = "all"
	filterActive     = "active"
	filterInactive   = "inactive"
)

// AccountManager は資格情報プロバイダーのうち管理操作に必要な部分。
type AccountManager interface {
	CreateAccount(ctx context.Context, email, password string) (string, error)
	DisableAccount(ctx context.Context, id string) error
	EnableAccount(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) error
}

// BookingCounter は状態ごとの予約件数を返す。
type BookingCounter interface {
	CountByStatus(ctx context.Context) (map[model.BookingStatus]int, error)
}

// Statistics はユーザー数の集計。
type Statistics struct {
	TotalUsers    int
	AdminUsers    int
	NormalUsers   int
	ActiveUsers   int
	InactiveUsers int
}

// Dashboard は管理者ダッシュボードの内容。
type Dashboard struct {
	Statistics    Statistics
	RecentUsers   []*model.User
	BookingCounts map[model.BookingStatus]int
}

// ListFilter はユーザー一覧の絞り込み条件。
// Role・Statusが空または"all"の場合は絞り込まない。
type ListFilter struct {
	Role   string
	Status string
	Search string
	Page   int
	Limit  int
}

// Pagination はページング情報。
type Pagination struct {
	CurrentPage int
	TotalPages  int
	TotalUsers  int
	HasNext     bool
	HasPrev     bool
}

// ListResult はユーザー一覧の結果。
type ListResult struct {
	Users      []*model.User
	Pagination Pagination
}

// CreateAdminInput は管理者アカウント作成の入力。
type CreateAdminInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service はユーザー管理のサービス層。
type Service struct {
	users    repository.UserRepository
	bookings BookingCounter
	accounts AccountManager
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, bookings BookingCounter, accounts AccountManager) *Service {
	return &Service{
		users:    users,
		bookings: bookings,
		accounts: accounts,
		now:      time.Now,
	}
}

// Dashboard はユーザー統計・最近のユーザー・予約件数を返す。
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var stats Statistics
	stats.TotalUsers = len(users)
	for _, u := range users {
		if u.IsAdmin() {
			stats.AdminUsers++
		} else {
			stats.NormalUsers++
		}
		if u.Active {
			stats.ActiveUsers++
		} else {
			stats.InactiveUsers++
		}
	}

	recent := users
	if len(recent) > RecentUsersLimit {
		recent = recent[:RecentUsersLimit]
	}

	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}

	return &Dashboard{Statistics: stats, RecentUsers: recent, BookingCounts: counts}, nil
}

// ListUsers は絞り込み・ページング済みのユーザー一覧を返す。
// ページ番号が範囲外の場合は空の一覧を返す。
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultPageLimit
	}
	if filter.Limit > MaxPageLimit {
		filter.Limit = MaxPageLimit
	}

	var role model.Role
	if filter.Role != "" && filter.Role != filterAll {
		r, ok := model.ParseRole(filter.Role)
		if !ok {
			return nil, validator.Field("role", "Role must be user, admin or all")
		}
		role = r
	}
	switch filter.Status {
	case "", filterAll, filterActive, filterInactive:
	default:
		return nil, validator.Field("status", "Status must be active, inactive or all")
	}

	all, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*model.User, 0, len(all))
	for _, u := range all {
		if role != "" && u.Role != role {
			continue
		}
		if filter.Status == filterActive && !u.Active {
			continue
		}
		if filter.Status == filterInactive && u.Active {
			continue
		}
		if search != "" && !matchesSearch(u, search) {
			continue
		}
		matched = append(matched, u)
	}

	total := len(matched)
	start, end := pageBounds(filter.Page, filter.Limit, total)

	totalPages := (total + filter.Limit - 1) / filter.Limit
	return &ListResult{
		Users: matched[start:end],
		Pagination: Pagination{
			CurrentPage: filter.Page,
			TotalPages:  totalPages,
			TotalUsers:  total,
			HasNext:     end < total,
			HasPrev:     filter.Page > 1,
		},
	}, nil
}

func matchesSearch(u *model.User, search string) bool {
	return strings.Contains(strings.ToLower(u.Email), search) ||
		strings.Contains(strings.ToLower(u.FirstName), search) ||
		strings.Contains(strings.ToLower(u.LastName), search)
}

// GetUser は指定IDのユーザーを返す。
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// CreateAdmin は管理者アカウントを作成し、作成者を記録する。
func (s *Service) CreateAdmin(ctx context.Context, actorID string, in CreateAdminInput) (*model.User, error) {
	in.Email = model.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if apiErr := validator.Collect(validation.Errors{
		"email":     validation.Validate(in.Email, validation.Required.Error("Valid email is required"), is.Email.Error("Valid email is required")),
		"password":  validation.Validate(in.Password, validator.AdminPasswordRules()...),
		"firstName": validation.Validate(in.FirstName, validation.Required.Error("First name is required"), validation.Length(1, 50).Error("First name must be less than 50 characters")),
		"lastName":  validation.Validate(in.LastName, validation.Required.Error("Last name is required"), validation.Length(1, 50).Error("Last name must be less than 50 characters")),
	}); apiErr != nil {
		return nil, apiErr
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailExistsError()
	}

	subjectID, err := s.accounts.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrDuplicateEmail):
			return nil, model.NewEmailExistsError()
		case errors.Is(err, credential.ErrInvalidEmail):
			return nil, validator.Field("email", "Invalid email address")
		case errors.Is(err, credential.ErrWeakPassword):
			return nil, validator.Field("password", "Password is too weak")
		default:
			return nil, fmt.Errorf("failed to create admin account: %w", err)
		}
	}

	now := s.now().UTC()
	admin := &model.User{
		ID:        subjectID,
		Email:     in.Email,
		Role:      model.RoleAdmin,
		Active:    true,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if delErr := s.accounts.DeleteAccount(ctx, subjectID); delErr != nil {
			slog.Error("failed to roll back provider account",
				slog.String("user_id", subjectID),
				slog.String("error", delErr.Error()),
			)
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailExistsError()
		}
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("admin user created",
		slog.String("user_id", admin.ID),
		slog.String("created_by", actorID),
	)
	return admin, nil
}

// UpdateRole はユーザーのロールを変更する。
// 管理者が自分自身をuserへ降格することはできない。
func (s *Service) UpdateRole(ctx context.Context, actorID, id string, role model.Role) (*model.User, error) {
	if !role.IsValid() {
		return nil, validator.Field("role", "Role must be either user or admin")
	}
	if id == actorID && role == model.RoleUser {
		return nil, model.NewSelfModificationError("You cannot change your own role to user")
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	u.Role = role

	slog.Info("user role updated",
		slog.String("user_id", id),
		slog.String("role", string(role)),
		slog.String("actor_id", actorID),
	)
	return u, nil
}

// UpdateStatus はユーザーを有効化または無効化する。
// ディレクトリとプロバイダーの両方に反映する。管理者は自分自身を無効化できない。
func (s *Service) UpdateStatus(ctx context.Context, actorID, id string, active bool) (*model.User, error) {
	if id == actorID && !active {
		return nil, model.NewSelfModificationError("You cannot deactivate your own account")
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if active {
		err = s.accounts.EnableAccount(ctx, id)
	} else {
		err = s.accounts.DisableAccount(ctx, id)
	}
	if err != nil && !errors.Is(err, credential.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to update provider account status: %w", err)
	}

	if err := s.users.UpdateStatus(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	u.Active = active

	slog.Info("user status updated",
		slog.String("user_id", id),
		slog.Bool("active", active),
		slog.String("actor_id", actorID),
	)
	return u, nil
}

// DeleteUser はユーザーを完全に削除する。
// プロバイダー側のアカウントを先に削除し、続いてディレクトリから削除する。
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) (*model.User, error) {
	if id == actorID {
		return nil, model.NewSelfModificationError("You cannot delete your own account")
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.DeleteAccount(ctx, id); err != nil && !errors.Is(err, credential.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to delete provider account: %w", err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted",
		slog.String("user_id", id),
		slog.String("actor_id", actorID),
	)
	return u, nil
}

// pageBounds はページ番号と件数から切り出し範囲を求める。
// 範囲外のページは空の範囲になり、乗算はtotalを超えない。
func pageBounds(page, limit, total int) (start, end int) {
	if page-1 > total/limit {
		return total, total
	}
	start = min((page-1)*limit, total)
	end = start + min(limit, total-start)
	return start, end
}
