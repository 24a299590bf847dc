// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/travelbook/internal/model"
)

var (
	// ErrNotFound は更新・削除対象のレコードが存在しない場合のエラー。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail はユーザーディレクトリにメールアドレスが既に存在する場合のエラー。
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository はユーザーディレクトリの永続化インターフェース。
// すべての操作はsubject idをキーとする単一レコードの読み書きで、
// 同一ユーザーへの並行更新は後勝ちとなる。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーを作成日時の降順で返す。
	// 絞り込み・ページングは呼び出し側がメモリ上で行う。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。メール重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateRole はロールを更新する。対象がない場合はErrNotFoundを返す。
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// UpdateStatus は有効フラグを更新する。対象がない場合はErrNotFoundを返す。
	UpdateStatus(ctx context.Context, id string, active bool) error

	// Delete はユーザーを削除する。対象がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// TouchLastLogin は最終ログイン日時を記録する。
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// BookingRepository は予約データの永続化インターフェース。
type BookingRepository interface {
	// Create は予約を作成する。
	Create(ctx context.Context, booking *model.Booking) error

	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Booking, error)

	// FindDuplicate は同一ユーザー・同一目的地・同一日付の予約を状態を問わず返す。
	// 見つからない場合はnilを返す。
	FindDuplicate(ctx context.Context, userID, destination string, travelDate time.Time) (*model.Booking, error)

	// ListByUserID はユーザーの予約を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Booking, error)

	// List は全予約を作成日時の降順で返す。statusが空でない場合はその状態のみ返す。
	List(ctx context.Context, status model.BookingStatus) ([]*model.Booking, error)

	// CountByStatus は状態ごとの予約件数を返す。
	CountByStatus(ctx context.Context) (map[model.BookingStatus]int, error)

	// UpdateStatus は状態と更新者を記録する。対象がない場合はErrNotFoundを返す。
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus, updatedBy string) error

	// Cancel は状態をcancelledにしキャンセル実行者を記録する。対象がない場合はErrNotFoundを返す。
	Cancel(ctx context.Context, id, cancelledBy string) error

	// Delete は予約を削除する。対象がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// CredentialRepository はローカル資格情報の永続化インターフェース。
type CredentialRepository interface {
	Create(ctx context.Context, cred *model.Credential) error
	FindByEmail(ctx context.Context, email string) (*model.Credential, error)
	FindByResetCode(ctx context.Context, codeHash string) (*model.Credential, error)
	SetDisabled(ctx context.Context, subjectID string, disabled bool) (bool, error)
	Delete(ctx context.Context, subjectID string) (bool, error)
	SetResetCode(ctx context.Context, subjectID, codeHash string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, subjectID, passwordHash string) error

	// PurgeExpiredResetCodes は期限切れのリセットコードを破棄し、件数を返す。
	PurgeExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}
