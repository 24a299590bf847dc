// Package auth はアカウント登録・ログイン・パスワードリセットと初期管理者の作成を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/hitoshi/travelbook/internal/credential"
	"github.com/hitoshi/travelbook/internal/model"
	"github.com/hitoshi/travelbook/internal/repository"
	"github.com/hitoshi/travelbook/internal/token"
	"github.com/hitoshi/travelbook/internal/validator"
)

// ログイン試行の結果ラベル
const (
	AttemptSuccess  = "success"
	AttemptFailure  = "failure"
	AttemptLocked   = "locked"
	AttemptDisabled = "deactivated"
)

// ResetRequestedMessage はパスワードリセット要求に対して常に返す汎用メッセージ。
const ResetRequestedMessage = "If an account exists with this email, a password reset link will be sent."

// TokenIssuer はセッショントークンを発行する。
type TokenIssuer interface {
	Issue(s token.Subject) (string, error)
}

// AttemptRecorder はログイン試行の結果を記録する。
type AttemptRecorder interface {
	RecordLoginAttempt(result string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// ExposeResetLink が真の場合、リセットリンクを呼び出し元に返す（開発環境用）。
	ExposeResetLink bool
	// Now はテスト用に差し替え可能な時刻関数。nilの場合はtime.Now。
	Now func() time.Time
}

// RegisterInput は自己登録の入力。
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// AuthResult は登録・ログイン成功時の結果。
type AuthResult struct {
	Token      string
	User       *model.User
	RedirectTo string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider credential.Provider
	users    repository.UserRepository
	issuer   TokenIssuer
	guard    *LoginGuard
	recorder AttemptRecorder
	config   ServiceConfig
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	provider credential.Provider,
	users repository.UserRepository,
	issuer TokenIssuer,
	guard *LoginGuard,
	recorder AttemptRecorder,
	config ServiceConfig,
) *Service {
	if config.Now == nil {
		config.Now = time.Now
	}
	if guard == nil {
		guard = NewLoginGuard(LoginGuardConfig{Now: config.Now})
	}
	return &Service{
		provider: provider,
		users:    users,
		issuer:   issuer,
		guard:    guard,
		recorder: recorder,
		config:   config,
	}
}

func (s *Service) recordAttempt(result string) {
	if s.recorder != nil {
		s.recorder.RecordLoginAttempt(result)
	}
}

func validateRegisterInput(in RegisterInput) error {
	if apiErr := validator.Collect(validation.Errors{
		"email":    validation.Validate(in.Email, validation.Required.Error("Valid email is required"), is.Email.Error("Valid email is required")),
		"password": validation.Validate(in.Password, validator.PasswordRules()...),
		"confirmPassword": validation.Validate(in.ConfirmPassword,
			validation.Required.Error("Passwords do not match"),
			validation.In(in.Password).Error("Passwords do not match"),
		),
		"firstName": validation.Validate(in.FirstName, validation.Length(0, 50).Error("First name must be less than 50 characters")),
		"lastName":  validation.Validate(in.LastName, validation.Length(0, 50).Error("Last name must be less than 50 characters")),
	}); apiErr != nil {
		return apiErr
	}
	return nil
}

// Register は一般ユーザーとして自己登録する。
//
// 重複メールアドレスは汎用の登録失敗エラーとし、登録有無を推測させない。
// ディレクトリへの保存に失敗した場合はプロバイダー側のアカウントを削除する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = model.NormalizeEmail(in.Email)
	if err := validateRegisterInput(in); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewRegistrationFailedError()
	}

	subjectID, err := s.provider.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		return nil, mapCreateAccountError(err)
	}

	now := s.config.Now().UTC()
	user := &model.User{
		ID:        subjectID,
		Email:     in.Email,
		Role:      model.RoleUser,
		Active:    true,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.rollbackAccount(ctx, subjectID)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewRegistrationFailedError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	tok, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return &AuthResult{Token: tok, User: user, RedirectTo: "/"}, nil
}

// mapCreateAccountError はプロバイダーのアカウント作成エラーをAPIエラーに変換する。
func mapCreateAccountError(err error) error {
	switch {
	case errors.Is(err, credential.ErrDuplicateEmail):
		return model.NewRegistrationFailedError()
	case errors.Is(err, credential.ErrWeakPassword):
		return validator.Field("password", "Password is too weak")
	case errors.Is(err, credential.ErrInvalidEmail):
		return validator.Field("email", "Valid email is required")
	default:
		return fmt.Errorf("failed to create account: %w", err)
	}
}

func (s *Service) rollbackAccount(ctx context.Context, subjectID string) {
	if err := s.provider.DeleteAccount(ctx, subjectID); err != nil {
		slog.Error("failed to roll back provider account",
			slog.String("user_id", subjectID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) issue(user *model.User) (string, error) {
	tok, err := s.issuer.Issue(token.Subject{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return tok, nil
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
//
// 未登録メールとパスワード不一致はいずれも同じ401とし、失敗回数に数える。
// 無効化アカウントのエラーはパスワード検証に成功した後でのみ返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = model.NormalizeEmail(email)
	if apiErr := validator.Collect(validation.Errors{
		"email":    validation.Validate(email, validation.Required.Error("Valid email is required"), is.Email.Error("Valid email is required")),
		"password": validation.Validate(password, validation.Required.Error("Password is required")),
	}); apiErr != nil {
		return nil, apiErr
	}

	if s.guard.Locked(email) {
		s.recordAttempt(AttemptLocked)
		return nil, model.NewTooManyAttemptsError()
	}

	subjectID, err := s.provider.VerifyPassword(ctx, email, password)
	if err != nil {
		switch {
		case credential.IsAuthFailure(err):
			if s.guard.Fail(email) {
				slog.Warn("login identifier locked after repeated failures")
			}
			s.recordAttempt(AttemptFailure)
			return nil, model.NewInvalidCredentialsError()
		case errors.Is(err, credential.ErrAccountDisabled):
			s.recordAttempt(AttemptDisabled)
			return nil, model.NewLoginDeactivatedError()
		default:
			return nil, fmt.Errorf("failed to verify password: %w", err)
		}
	}

	user, err := s.users.FindByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// プロバイダーにのみ存在するアカウントはログイン不可
		s.guard.Fail(email)
		s.recordAttempt(AttemptFailure)
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.Active {
		s.recordAttempt(AttemptDisabled)
		return nil, model.NewLoginDeactivatedError()
	}

	now := s.config.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		slog.Warn("failed to record last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLoginAt = &now
	}

	s.guard.Reset(email)
	s.recordAttempt(AttemptSuccess)

	tok, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	redirectTo := "/"
	if user.IsAdmin() {
		redirectTo = "/admin"
	}
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &AuthResult{Token: tok, User: user, RedirectTo: redirectTo}, nil
}

// RequestPasswordReset はパスワードリセットリンクを発行する。
//
// 登録済みのメールアドレスのみプロバイダーへ問い合わせる。
// プロバイダーの失敗はログに記録するだけで呼び出し元には返さない。
// ExposeResetLinkが偽の場合、戻り値のリンクは常に空文字列。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = model.NormalizeEmail(email)
	if apiErr := validator.Collect(validation.Errors{
		"email": validation.Validate(email, validation.Required.Error("Valid email is required"), is.Email.Error("Valid email is required")),
	}); apiErr != nil {
		return "", apiErr
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", nil
	}

	link, err := s.provider.PasswordResetLink(ctx, email)
	if err != nil {
		slog.Error("failed to generate password reset link",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return "", nil
	}

	slog.Info("password reset link generated", slog.String("user_id", user.ID))
	if !s.config.ExposeResetLink {
		return "", nil
	}
	return link, nil
}

// ConfirmPasswordReset はリセットコードを使って新しいパスワードを設定する。
func (s *Service) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if apiErr := validator.Collect(validation.Errors{
		"oobCode":     validation.Validate(code, validation.Required.Error("Reset code is required")),
		"newPassword": validation.Validate(newPassword, validator.PasswordRules()...),
	}); apiErr != nil {
		return apiErr
	}

	if err := s.provider.ConfirmPasswordReset(ctx, code, newPassword); err != nil {
		switch {
		case errors.Is(err, credential.ErrInvalidResetCode):
			return model.NewInvalidResetCodeError()
		case errors.Is(err, credential.ErrWeakPassword):
			return validator.Field("newPassword", "Password is too weak")
		default:
			return fmt.Errorf("failed to confirm password reset: %w", err)
		}
	}
	return nil
}

// BootstrapAdmin は初期管理者アカウントを作成する。
// 同じメールアドレスのユーザーが既に存在する場合は何もせず既存ユーザーを返す。
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) (*model.User, bool, error) {
	email = model.NormalizeEmail(email)
	if apiErr := validator.Collect(validation.Errors{
		"email":    validation.Validate(email, validation.Required, is.Email),
		"password": validation.Validate(password, validator.AdminPasswordRules()...),
	}); apiErr != nil {
		return nil, false, apiErr
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check existing admin: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	subjectID, err := s.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create admin account: %w", err)
	}

	now := s.config.Now().UTC()
	admin := &model.User{
		ID:           subjectID,
		Email:        email,
		Role:         model.RoleAdmin,
		Active:       true,
		FirstName:    "System",
		LastName:     "Administrator",
		InitialAdmin: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		s.rollbackAccount(ctx, subjectID)
		return nil, false, fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("initial admin created", slog.String("user_id", admin.ID))
	return admin, true, nil
}
