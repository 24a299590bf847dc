// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role はユーザーの権限ロールを表す。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid はロールが定義済みの値かどうかを返す。
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole は文字列をRoleに変換する。未定義の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// User はユーザーディレクトリに保存されるアカウントプロファイルを表す。
// IDは資格情報プロバイダーが払い出す不透明な文字列。
type User struct {
	ID           string
	Email        string
	Role         Role
	Active       bool
	FirstName    string
	LastName     string
	CreatedBy    string // 管理者が作成した場合のみ作成者ID
	InitialAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// IsAdmin はユーザーが管理者ロールかどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail はメールアドレスを比較・保存用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Credential はローカル資格情報プロバイダーが保持するパスワード情報を表す。
type Credential struct {
	SubjectID        string
	Email            string
	PasswordHash     string
	Disabled         bool
	ResetCodeHash    string
	ResetCodeExpires *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
