// Package credential は外部の資格情報プロバイダーとの連携を提供する。
//
// Providerはアカウントの作成・パスワード検証・無効化・削除と、
// パスワードリセット用アーティファクトの発行を抽象化する。
package credential

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength はプロバイダーが受け付けるパスワードの最小長。
const MinPasswordLength = 6

var (
	// ErrDuplicateEmail は既に登録済みのメールアドレスでアカウントを作成しようとした場合のエラー。
	ErrDuplicateEmail = errors.New("credential: email already exists")
	// ErrWeakPassword はパスワードがプロバイダーの要件を満たさない場合のエラー。
	ErrWeakPassword = errors.New("credential: weak password")
	// ErrInvalidEmail はメールアドレスの形式が不正な場合のエラー。
	ErrInvalidEmail = errors.New("credential: invalid email")
	// ErrAccountNotFound はアカウントが存在しない場合のエラー。
	ErrAccountNotFound = errors.New("credential: account not found")
	// ErrWrongCredentials はパスワードが一致しない場合のエラー。
	ErrWrongCredentials = errors.New("credential: wrong credentials")
	// ErrAccountDisabled はプロバイダー側でアカウントが無効化されている場合のエラー。
	ErrAccountDisabled = errors.New("credential: account disabled")
	// ErrInvalidResetCode はリセットコードが無効または期限切れの場合のエラー。
	ErrInvalidResetCode = errors.New("credential: invalid reset code")
)

// Provider は資格情報プロバイダーの契約。
type Provider interface {
	// CreateAccount はアカウントを作成し、払い出されたsubject idを返す。
	CreateAccount(ctx context.Context, email, password string) (string, error)
	// VerifyPassword はパスワードを検証し、一致した場合にsubject idを返す。
	// 呼び出し側はErrAccountNotFoundとErrWrongCredentialsを区別してはならない。
	VerifyPassword(ctx context.Context, email, password string) (string, error)
	// DisableAccount はアカウントを無効化する。冪等。
	DisableAccount(ctx context.Context, id string) error
	// EnableAccount はアカウントを有効化する。冪等。
	EnableAccount(ctx context.Context, id string) error
	// DeleteAccount はアカウントを削除する。
	DeleteAccount(ctx context.Context, id string) error
	// PasswordResetLink はパスワードリセット用リンクを発行する。
	PasswordResetLink(ctx context.Context, email string) (string, error)
	// ConfirmPasswordReset はリセットコードを使って新しいパスワードを設定する。
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

// IsAuthFailure はログイン失敗として扱うべきエラーかどうかを返す。
// アカウント不在とパスワード不一致を同一視する。
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrWrongCredentials)
}

// validateNewAccount はプロバイダー共通のアカウント作成時チェックを行う。
func validateNewAccount(email, password string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ErrInvalidEmail
	}
	return validatePassword(password)
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
