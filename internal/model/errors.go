package model

import (
	"fmt"
	"strings"
)

// FieldError はバリデーション失敗時のフィールド単位の詳細を表す。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError は統一エラーフォーマットを表す。
// HTTPステータスへの変換はCategoryに基づいて行う。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // クライアントに返すメッセージ
	Category string       // カテゴリ: validation, auth, forbidden, not_found, conflict, rate_limit, system
	Details  []FieldError // フィールド単位の詳細（validationのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryForbidden  = "forbidden"
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategoryRateLimit  = "rate_limit"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountDisabled    = "ACCOUNT_DEACTIVATED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeSelfModification   = "SELF_MODIFICATION"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeBookingNotFound    = "BOOKING_NOT_FOUND"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodeRegistrationFailed = "REGISTRATION_FAILED"
	ErrCodeEmailExists        = "EMAIL_EXISTS"
	ErrCodeDuplicateBooking   = "DUPLICATE_BOOKING"
	ErrCodeBookingLocked      = "BOOKING_NOT_CANCELLABLE"
	ErrCodeInvalidResetCode   = "INVALID_RESET_CODE"
	ErrCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError はフィールド詳細付きのバリデーションエラーを生成する。
func NewValidationError(details []FieldError) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "Validation failed",
		Category: CategoryValidation,
		Details:  details,
	}
}

// NewInvalidRequestError はリクエストボディ解析失敗などの汎用400エラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: CategoryValidation,
	}
}

// NewUnauthenticatedError は認証失敗エラーを生成する。
func NewUnauthenticatedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: CategoryAuth,
	}
}

// NewInvalidTokenError はトークン検証失敗エラーを生成する。
// 失敗理由（期限切れ・署名不正・形式不正）はクライアントに区別させない。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid or expired token",
		Category: CategoryAuth,
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// 未登録メールとパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: CategoryAuth,
	}
}

// NewAccountDeactivatedError は無効化されたアカウントのエラーを生成する。
func NewAccountDeactivatedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDisabled,
		Message:  "User account is deactivated",
		Category: CategoryForbidden,
	}
}

// NewLoginDeactivatedError はログイン時に無効化アカウントを検出した場合のエラーを生成する。
// トークン検証後の無効化 (403) とは異なり、認証失敗として扱う。
func NewLoginDeactivatedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDisabled,
		Message:  "Account is deactivated. Please contact administrator.",
		Category: CategoryAuth,
	}
}

// NewRoleRequiredError はロール不足エラーを生成する。
// メッセージには要求ロールのみを含め、呼び出し元のロールは含めない。
func NewRoleRequiredError(roles []Role) *APIError {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Access denied. Required roles: " + strings.Join(names, ", "),
		Category: CategoryForbidden,
	}
}

// NewForbiddenError は任意メッセージの403エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: CategoryForbidden,
	}
}

// NewSelfModificationError は管理者が自分自身のアクセス権を失わせる操作のエラーを生成する。
func NewSelfModificationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeSelfModification,
		Message:  message,
		Category: CategoryForbidden,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: CategoryNotFound,
	}
}

// NewBookingNotFoundError は予約が見つからない場合のエラーを生成する。
func NewBookingNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeBookingNotFound,
		Message:  "Booking not found",
		Category: CategoryNotFound,
	}
}

// NewRegistrationFailedError は自己登録の失敗を汎用メッセージで返す。
// メールアドレスの登録有無を推測させないため、重複時もこのエラーを使う。
func NewRegistrationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  "Registration failed. Please check your details and try again.",
		Category: CategoryValidation,
	}
}

// NewEmailExistsError は管理者によるアカウント作成時のメール重複エラーを生成する。
func NewEmailExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailExists,
		Message:  "User with this email already exists",
		Category: CategoryConflict,
	}
}

// NewDuplicateBookingError は同一ユーザー・同一目的地・同一日付の予約重複エラーを生成する。
func NewDuplicateBookingError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateBooking,
		Message:  "You have already made a booking for this place and date",
		Category: CategoryConflict,
	}
}

// NewBookingNotCancellableError はキャンセル不可状態の予約に対するエラーを生成する。
func NewBookingNotCancellableError(status BookingStatus) *APIError {
	return &APIError{
		Code:     ErrCodeBookingLocked,
		Message:  fmt.Sprintf("Booking is already %s and cannot be cancelled", status),
		Category: CategoryConflict,
	}
}

// NewInvalidResetCodeError はパスワードリセットコードが無効な場合のエラーを生成する。
func NewInvalidResetCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResetCode,
		Message:  "Invalid or expired reset code",
		Category: CategoryValidation,
	}
}

// NewTooManyAttemptsError はログイン試行回数超過エラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "Too many failed login attempts. Please try again later.",
		Category: CategoryRateLimit,
	}
}

// NewInternalError はクライアント向けの汎用内部エラーを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: CategorySystem,
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests from this IP, please try again later.",
		Category: CategoryRateLimit,
	}
}

// NewRouteNotFoundError は未定義ルートへのアクセスエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  "Route not found",
		Category: CategoryNotFound,
	}
}
