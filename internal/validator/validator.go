// Package validator はozzo-validationのエラーをAPIエラーへ変換する補助関数を提供する。
package validator

import (
	"errors"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/hitoshi/travelbook/internal/model"
)

var (
	lowerRe   = regexp.MustCompile(`[a-z]`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[@$!%*?&]`)
)

// PasswordRules は一般ユーザー向けのパスワードルールを返す。
// 6文字以上で大文字・小文字・数字をそれぞれ1文字以上含む。
func PasswordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Password is required"),
		validation.Length(6, 128).Error("Password must be at least 6 characters"),
		validation.Match(lowerRe).Error("Password must contain at least one uppercase letter, one lowercase letter, and one number"),
		validation.Match(upperRe).Error("Password must contain at least one uppercase letter, one lowercase letter, and one number"),
		validation.Match(digitRe).Error("Password must contain at least one uppercase letter, one lowercase letter, and one number"),
	}
}

// AdminPasswordRules は管理者向けのパスワードルールを返す。
// 8文字以上で大文字・小文字・数字・記号(@$!%*?&)をそれぞれ1文字以上含む。
func AdminPasswordRules() []validation.Rule {
	const complexity = "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"
	return []validation.Rule{
		validation.Required.Error("Password is required"),
		validation.Length(8, 128).Error("Password must be at least 8 characters"),
		validation.Match(lowerRe).Error(complexity),
		validation.Match(upperRe).Error(complexity),
		validation.Match(digitRe).Error(complexity),
		validation.Match(specialRe).Error(complexity),
	}
}

// Collect はフィールド単位の検証結果をまとめ、失敗があればバリデーションエラーを返す。
// 失敗がなければnilを返す。
func Collect(errs validation.Errors) *model.APIError {
	filtered := errs.Filter()
	if filtered == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(filtered, &fieldErrs) {
		return model.NewValidationError([]model.FieldError{{Message: filtered.Error()}})
	}

	details := make([]model.FieldError, 0, len(fieldErrs))
	for field, err := range fieldErrs {
		details = append(details, model.FieldError{Field: field, Message: err.Error()})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Field < details[j].Field })
	return model.NewValidationError(details)
}

// Field は単一フィールドのバリデーションエラーを生成する。
func Field(field, message string) *model.APIError {
	return model.NewValidationError([]model.FieldError{{Field: field, Message: message}})
}
