package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/travelbook/internal/model"
	"github.com/hitoshi/travelbook/internal/token"
)

// --- モック定義 ---

type mockProvider struct {
	createAccountFn        func(ctx context.Context, email, password string) (string, error)
	verifyPasswordFn       func(ctx context.Context, email, password string) (string, error)
	deleteAccountFn        func(ctx context.Context, id string) error
	passwordResetLinkFn    func(ctx context.Context, email string) (string, error)
	confirmPasswordResetFn func(ctx context.Context, code, newPassword string) error

	deleted []string
}

func (m *mockProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, email, password)
	}
	return "sub-1", nil
}

func (m *mockProvider) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	if m.verifyPasswordFn != nil {
		return m.verifyPasswordFn(ctx, email, password)
	}
	return "sub-1", nil
}

func (m *mockProvider) DisableAccount(_ context.Context, _ string) error { return nil }

func (m *mockProvider) EnableAccount(_ context.Context, _ string) error { return nil }

func (m *mockProvider) DeleteAccount(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(ctx, id)
	}
	return nil
}

func (m *mockProvider) PasswordResetLink(ctx context.Context, email string) (string, error) {
	if m.passwordResetLinkFn != nil {
		return m.passwordResetLinkFn(ctx, email)
	}
	return "http://localhost/reset-password?oobCode=abc", nil
}

func (m *mockProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if m.confirmPasswordResetFn != nil {
		return m.confirmPasswordResetFn(ctx, code, newPassword)
	}
	return nil
}

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
	touchLastLoginFn func(ctx context.Context, id string, at time.Time) error

	created []*model.User
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) List(_ context.Context) ([]*model.User, error) { return nil, nil }

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, user); err != nil {
			return err
		}
	}
	m.created = append(m.created, user)
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, _ string, _ model.Role) error { return nil }

func (m *mockUserRepo) UpdateStatus(_ context.Context, _ string, _ bool) error { return nil }

func (m *mockUserRepo) Delete(_ context.Context, _ string) error { return nil }

func (m *mockUserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.touchLastLoginFn != nil {
		return m.touchLastLoginFn(ctx, id, at)
	}
	return nil
}

type mockIssuer struct {
	issued []token.Subject
	err    error
}

func (m *mockIssuer) Issue(s token.Subject) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.issued = append(m.issued, s)
	return "token-for-" + s.UserID, nil
}

type mockAttemptRecorder struct {
	mu      sync.Mutex
	results []string
}

func (m *mockAttemptRecorder) RecordLoginAttempt(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *mockAttemptRecorder) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.results) == 0 {
		return ""
	}
	return m.results[len(m.results)-1]
}
