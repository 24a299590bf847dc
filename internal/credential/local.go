package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/travelbook/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// DefaultResetCodeTTL はローカルプロバイダーのリセットコード有効期間。
const DefaultResetCodeTTL = time.Hour

// ErrCredentialExists はストアにメールアドレスが既に存在する場合にストアが返すエラー。
var ErrCredentialExists = errors.New("credential already exists")

// Store はローカルプロバイダーが必要とする資格情報ストア。
// repository.CredentialRepositoryの部分集合として定義する。
type Store interface {
	// Create は資格情報を作成する。メール重複時はErrCredentialExistsを返す。
	Create(ctx context.Context, cred *model.Credential) error
	// FindByEmail はメールアドレスで資格情報を取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Credential, error)
	// FindByResetCode はリセットコードのハッシュで資格情報を取得する。見つからない場合はnilを返す。
	FindByResetCode(ctx context.Context, codeHash string) (*model.Credential, error)
	// SetDisabled は無効化フラグを更新する。対象がない場合はfalseを返す。
	SetDisabled(ctx context.Context, subjectID string, disabled bool) (bool, error)
	// Delete は資格情報を削除する。対象がない場合はfalseを返す。
	Delete(ctx context.Context, subjectID string) (bool, error)
	// SetResetCode はリセットコードのハッシュと有効期限を保存する。
	SetResetCode(ctx context.Context, subjectID, codeHash string, expiresAt time.Time) error
	// UpdatePassword はパスワードハッシュを更新し、リセットコードを破棄する。
	UpdatePassword(ctx context.Context, subjectID, passwordHash string) error
}

// LocalConfig はLocalProviderの設定。
type LocalConfig struct {
	BcryptCost   int
	ResetBaseURL string // リセットリンクのベースURL（例: https://example.com/reset-password）
	ResetCodeTTL time.Duration
	Now          func() time.Time
}

// LocalProvider はbcryptハッシュを自前のストアに保存する資格情報プロバイダー。
type LocalProvider struct {
	store  Store
	config LocalConfig
}

// NewLocalProvider はLocalProviderを生成する。
func NewLocalProvider(store Store, config LocalConfig) *LocalProvider {
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.ResetCodeTTL <= 0 {
		config.ResetCodeTTL = DefaultResetCodeTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &LocalProvider{store: store, config: config}
}

// CreateAccount はパスワードをハッシュ化して資格情報を作成する。
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if err := validateNewAccount(email, password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrWeakPassword
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := p.config.Now()
	cred := &model.Credential{
		SubjectID:    uuid.NewString(),
		Email:        model.NormalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.store.Create(ctx, cred); err != nil {
		if errors.Is(err, ErrCredentialExists) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("failed to create credential: %w", err)
	}
	return cred.SubjectID, nil
}

// VerifyPassword はbcryptハッシュとパスワードを比較する。
func (p *LocalProvider) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	cred, err := p.store.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return "", ErrAccountNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", ErrWrongCredentials
		}
		return "", fmt.Errorf("failed to compare password: %w", err)
	}
	if cred.Disabled {
		return "", ErrAccountDisabled
	}
	return cred.SubjectID, nil
}

// DisableAccount は資格情報を無効化する。
func (p *LocalProvider) DisableAccount(ctx context.Context, id string) error {
	return p.setDisabled(ctx, id, true)
}

// EnableAccount は資格情報を有効化する。
func (p *LocalProvider) EnableAccount(ctx context.Context, id string) error {
	return p.setDisabled(ctx, id, false)
}

func (p *LocalProvider) setDisabled(ctx context.Context, id string, disabled bool) error {
	found, err := p.store.SetDisabled(ctx, id, disabled)
	if err != nil {
		return fmt.Errorf("failed to update credential status: %w", err)
	}
	if !found {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount は資格情報を削除する。
func (p *LocalProvider) DeleteAccount(ctx context.Context, id string) error {
	found, err := p.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if !found {
		return ErrAccountNotFound
	}
	return nil
}

// PasswordResetLink はランダムなリセットコードを発行し、そのハッシュのみを保存する。
func (p *LocalProvider) PasswordResetLink(ctx context.Context, email string) (string, error) {
	cred, err := p.store.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return "", ErrAccountNotFound
	}

	code, err := generateResetCode()
	if err != nil {
		return "", err
	}

	expiresAt := p.config.Now().Add(p.config.ResetCodeTTL)
	if err := p.store.SetResetCode(ctx, cred.SubjectID, hashResetCode(code), expiresAt); err != nil {
		return "", fmt.Errorf("failed to store reset code: %w", err)
	}

	return p.config.ResetBaseURL + "?oobCode=" + url.QueryEscape(code), nil
}

// ConfirmPasswordReset はリセットコードを検証してパスワードを更新する。
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if code == "" {
		return ErrInvalidResetCode
	}

	cred, err := p.store.FindByResetCode(ctx, hashResetCode(code))
	if err != nil {
		return fmt.Errorf("failed to find reset code: %w", err)
	}
	if cred == nil || cred.ResetCodeExpires == nil || !p.config.Now().Before(*cred.ResetCodeExpires) {
		return ErrInvalidResetCode
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return ErrWeakPassword
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := p.store.UpdatePassword(ctx, cred.SubjectID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// generateResetCode は暗号論的に安全な32バイトのリセットコードを生成する。
func generateResetCode() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// compile-time interface check
var _ Provider = (*LocalProvider)(nil)
