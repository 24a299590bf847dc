package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/travelbook/internal/credential"
	"github.com/hitoshi/travelbook/internal/model"
	"github.com/lib/pq"
)

const credentialColumns = `subject_id, email, password_hash, disabled, COALESCE(reset_code_hash, ''),
	reset_code_expires, created_at, updated_at`

// PostgresCredentialRepo はローカル資格情報プロバイダー用のPostgreSQLストア。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

func scanCredential(row rowScanner) (*model.Credential, error) {
	c := &model.Credential{}
	var expires sql.NullTime
	err := row.Scan(&c.SubjectID, &c.Email, &c.PasswordHash, &c.Disabled, &c.ResetCodeHash,
		&expires, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		c.ResetCodeExpires = &t
	}
	return c, nil
}

// Create は資格情報を作成する。メール重複時はcredential.ErrCredentialExistsを返す。
func (r *PostgresCredentialRepo) Create(ctx context.Context, cred *model.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (subject_id, email, password_hash, disabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		cred.SubjectID, cred.Email, cred.PasswordHash, cred.Disabled, cred.CreatedAt, cred.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return credential.ErrCredentialExists
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスで資格情報を取得する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByEmail(ctx context.Context, email string) (*model.Credential, error) {
	c, err := scanCredential(r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE lower(email) = lower($1)`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return c, nil
}

// FindByResetCode はリセットコードのハッシュで資格情報を取得する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByResetCode(ctx context.Context, codeHash string) (*model.Credential, error) {
	c, err := scanCredential(r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE reset_code_hash = $1`, codeHash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential by reset code: %w", err)
	}
	return c, nil
}

// SetDisabled は無効化フラグを更新する。対象がない場合はfalseを返す。
func (r *PostgresCredentialRepo) SetDisabled(ctx context.Context, subjectID string, disabled bool) (bool, error) {
	return r.exec(ctx,
		`UPDATE credentials SET disabled = $2, updated_at = now() WHERE subject_id = $1`,
		subjectID, disabled)
}

// Delete は資格情報を削除する。対象がない場合はfalseを返す。
func (r *PostgresCredentialRepo) Delete(ctx context.Context, subjectID string) (bool, error) {
	return r.exec(ctx, `DELETE FROM credentials WHERE subject_id = $1`, subjectID)
}

// SetResetCode はリセットコードのハッシュと有効期限を保存する。
func (r *PostgresCredentialRepo) SetResetCode(ctx context.Context, subjectID, codeHash string, expiresAt time.Time) error {
	_, err := r.exec(ctx,
		`UPDATE credentials SET reset_code_hash = $2, reset_code_expires = $3, updated_at = now()
		 WHERE subject_id = $1`,
		subjectID, codeHash, expiresAt)
	return err
}

// UpdatePassword はパスワードハッシュを更新し、リセットコードを破棄する。
func (r *PostgresCredentialRepo) UpdatePassword(ctx context.Context, subjectID, passwordHash string) error {
	found, err := r.exec(ctx,
		`UPDATE credentials SET password_hash = $2, reset_code_hash = NULL, reset_code_expires = NULL,
			updated_at = now()
		 WHERE subject_id = $1`,
		subjectID, passwordHash)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredResetCodes は期限切れのリセットコードを破棄する。
func (r *PostgresCredentialRepo) PurgeExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET reset_code_hash = NULL, reset_code_expires = NULL
		 WHERE reset_code_expires IS NOT NULL AND reset_code_expires < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge reset codes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *PostgresCredentialRepo) exec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update credential: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface checks
var (
	_ CredentialRepository = (*PostgresCredentialRepo)(nil)
	_ credential.Store     = (*PostgresCredentialRepo)(nil)
)
