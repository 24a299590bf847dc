package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com"

// IdentityToolkitConfig はIdentity Toolkit REST APIの設定。
type IdentityToolkitConfig struct {
	APIKey    string
	ProjectID string
	// AdminToken は管理系API（update, delete, sendOobCode）で使用するBearerトークン。
	AdminToken string
	Timeout    time.Duration

	// テスト・エミュレータ用にオーバーライド可能なURL
	BaseURL string
}

// IdentityToolkitProvider はIdentity Toolkit REST APIを資格情報プロバイダーとして使用する。
type IdentityToolkitProvider struct {
	config IdentityToolkitConfig
	client *http.Client
	logger *slog.Logger
}

// NewIdentityToolkitProvider はIdentityToolkitProviderを生成する。
// clientがnilの場合はconfig.Timeoutを設定したクライアントを使用する。
func NewIdentityToolkitProvider(config IdentityToolkitConfig, client *http.Client, logger *slog.Logger) *IdentityToolkitProvider {
	if config.BaseURL == "" {
		config.BaseURL = defaultIdentityToolkitURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityToolkitProvider{config: config, client: client, logger: logger}
}

// toolkitError はIdentity Toolkitのエラーレスポンス。
type toolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type accountResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

type oobResponse struct {
	Email   string `json:"email"`
	OOBLink string `json:"oobLink"`
}

// CreateAccount はaccounts:signUpでアカウントを作成する。
func (p *IdentityToolkitProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if err := validateNewAccount(email, password); err != nil {
		return "", err
	}

	var resp accountResponse
	err := p.call(ctx, "accounts:signUp", false, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": false,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.LocalID == "" {
		return "", fmt.Errorf("empty localId in signUp response")
	}
	return resp.LocalID, nil
}

// VerifyPassword はaccounts:signInWithPasswordでパスワードを検証する。
func (p *IdentityToolkitProvider) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	var resp accountResponse
	err := p.call(ctx, "accounts:signInWithPassword", false, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.LocalID == "" {
		return "", fmt.Errorf("empty localId in signInWithPassword response")
	}
	return resp.LocalID, nil
}

// DisableAccount はaccounts:updateでアカウントを無効化する。
func (p *IdentityToolkitProvider) DisableAccount(ctx context.Context, id string) error {
	return p.setDisabled(ctx, id, true)
}

// EnableAccount はaccounts:updateでアカウントを有効化する。
func (p *IdentityToolkitProvider) EnableAccount(ctx context.Context, id string) error {
	return p.setDisabled(ctx, id, false)
}

func (p *IdentityToolkitProvider) setDisabled(ctx context.Context, id string, disabled bool) error {
	return p.call(ctx, "accounts:update", true, map[string]any{
		"localId":     id,
		"disableUser": disabled,
	}, nil)
}

// DeleteAccount はaccounts:deleteでアカウントを削除する。
func (p *IdentityToolkitProvider) DeleteAccount(ctx context.Context, id string) error {
	return p.call(ctx, "accounts:delete", true, map[string]any{
		"localId": id,
	}, nil)
}

// PasswordResetLink はaccounts:sendOobCodeでリセットリンクを発行する。
// returnOobLinkを指定し、メール送信ではなくリンクを受け取る。
func (p *IdentityToolkitProvider) PasswordResetLink(ctx context.Context, email string) (string, error) {
	var resp oobResponse
	err := p.call(ctx, "accounts:sendOobCode", true, map[string]any{
		"requestType":   "PASSWORD_RESET",
		"email":         email,
		"returnOobLink": true,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.OOBLink, nil
}

// ConfirmPasswordReset はaccounts:resetPasswordで新しいパスワードを設定する。
func (p *IdentityToolkitProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	return p.call(ctx, "accounts:resetPassword", false, map[string]any{
		"oobCode":     code,
		"newPassword": newPassword,
	}, nil)
}

// endpoint はメソッド名からリクエストURLを組み立てる。
// 管理系APIはプロジェクトスコープのパスを使用する。
func (p *IdentityToolkitProvider) endpoint(method string, admin bool) string {
	path := "/v1/" + method
	if admin && p.config.ProjectID != "" {
		path = "/v1/projects/" + url.PathEscape(p.config.ProjectID) + "/" + method
	}
	return p.config.BaseURL + path + "?key=" + url.QueryEscape(p.config.APIKey)
}

// call はIdentity Toolkitにリクエストを送り、結果をoutにデコードする。
// エラーレスポンスはパッケージのセンチネルエラーに変換する。
func (p *IdentityToolkitProvider) call(ctx context.Context, method string, admin bool, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(method, admin), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if admin && p.config.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.AdminToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		var te toolkitError
		if jsonErr := json.Unmarshal(respBody, &te); jsonErr == nil && te.Error.Message != "" {
			if mapped := mapToolkitError(te.Error.Message); mapped != nil {
				return mapped
			}
			p.logger.Error("identity toolkit request failed",
				slog.String("method", method),
				slog.Int("status", resp.StatusCode),
				slog.String("reason", te.Error.Message),
			)
		}
		return fmt.Errorf("%s failed with status %d", method, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	return nil
}

// mapToolkitError はIdentity Toolkitのエラーメッセージをセンチネルエラーに変換する。
// メッセージは "WEAK_PASSWORD : Password should be ..." のように詳細が続く場合がある。
func mapToolkitError(message string) error {
	code := message
	if i := strings.IndexAny(code, " :"); i >= 0 {
		code = code[:i]
	}

	switch code {
	case "EMAIL_EXISTS":
		return ErrDuplicateEmail
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return ErrInvalidEmail
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return ErrAccountNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "MISSING_PASSWORD":
		return ErrWrongCredentials
	case "USER_DISABLED":
		return ErrAccountDisabled
	case "INVALID_OOB_CODE", "EXPIRED_OOB_CODE":
		return ErrInvalidResetCode
	default:
		return nil
	}
}

// compile-time interface check
var _ Provider = (*IdentityToolkitProvider)(nil)
