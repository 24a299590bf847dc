package handler

import (
	"context"
	"time"

	"github.com/hitoshi/travelbook/internal/auth"
	"github.com/hitoshi/travelbook/internal/booking"
	"github.com/hitoshi/travelbook/internal/model"
	"github.com/hitoshi/travelbook/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn     func(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	loginFn        func(ctx context.Context, email, password string) (*auth.AuthResult, error)
	requestResetFn func(ctx context.Context, email string) (string, error)
	confirmResetFn func(ctx context.Context, code, newPassword string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if m.requestResetFn != nil {
		return m.requestResetFn(ctx, email)
	}
	return "", nil
}

func (m *mockAuthService) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if m.confirmResetFn != nil {
		return m.confirmResetFn(ctx, code, newPassword)
	}
	return nil
}

type mockAdminService struct {
	dashboardFn    func(ctx context.Context) (*user.Dashboard, error)
	listUsersFn    func(ctx context.Context, filter user.ListFilter) (*user.ListResult, error)
	getUserFn      func(ctx context.Context, id string) (*model.User, error)
	createAdminFn  func(ctx context.Context, actorID string, in user.CreateAdminInput) (*model.User, error)
	updateRoleFn   func(ctx context.Context, actorID, id string, role model.Role) (*model.User, error)
	updateStatusFn func(ctx context.Context, actorID, id string, active bool) (*model.User, error)
	deleteUserFn   func(ctx context.Context, actorID, id string) (*model.User, error)
}

func (m *mockAdminService) Dashboard(ctx context.Context) (*user.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx)
	}
	return &user.Dashboard{}, nil
}

func (m *mockAdminService) ListUsers(ctx context.Context, filter user.ListFilter) (*user.ListResult, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, filter)
	}
	return &user.ListResult{}, nil
}

func (m *mockAdminService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockAdminService) CreateAdmin(ctx context.Context, actorID string, in user.CreateAdminInput) (*model.User, error) {
	if m.createAdminFn != nil {
		return m.createAdminFn(ctx, actorID, in)
	}
	return nil, nil
}

func (m *mockAdminService) UpdateRole(ctx context.Context, actorID, id string, role model.Role) (*model.User, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, actorID, id, role)
	}
	return nil, nil
}

func (m *mockAdminService) UpdateStatus(ctx context.Context, actorID, id string, active bool) (*model.User, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, actorID, id, active)
	}
	return nil, nil
}

func (m *mockAdminService) DeleteUser(ctx context.Context, actorID, id string) (*model.User, error) {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(ctx, actorID, id)
	}
	return nil, nil
}

type mockBookingService struct {
	createFn       func(ctx context.Context, actor booking.Actor, in booking.CreateInput) (*model.Booking, error)
	listMineFn     func(ctx context.Context, actor booking.Actor) ([]*model.Booking, error)
	cancelFn       func(ctx context.Context, actor booking.Actor, id string) error
	listFn         func(ctx context.Context, filter booking.ListFilter) (*booking.ListResult, error)
	updateStatusFn func(ctx context.Context, actor booking.Actor, id, status string) (*model.Booking, error)
	deleteFn       func(ctx context.Context, actor booking.Actor, id string) error
}

func (m *mockBookingService) Create(ctx context.Context, actor booking.Actor, in booking.CreateInput) (*model.Booking, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return nil, nil
}

func (m *mockBookingService) ListMine(ctx context.Context, actor booking.Actor) ([]*model.Booking, error) {
	if m.listMineFn != nil {
		return m.listMineFn(ctx, actor)
	}
	return nil, nil
}

func (m *mockBookingService) Cancel(ctx context.Context, actor booking.Actor, id string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, actor, id)
	}
	return nil
}

func (m *mockBookingService) List(ctx context.Context, filter booking.ListFilter) (*booking.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return &booking.ListResult{}, nil
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, actor booking.Actor, id, status string) (*model.Booking, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, actor, id, status)
	}
	return nil, nil
}

func (m *mockBookingService) Delete(ctx context.Context, actor booking.Actor, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil
}

// mockDirectory はゲートウェイが参照するユーザーディレクトリのモック。
type mockDirectory struct {
	users map[string]*model.User
}

func (m *mockDirectory) FindByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(_ context.Context) error {
	return m.err
}

var testCreatedAt = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
