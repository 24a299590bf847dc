package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/travelbook/internal/auth"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	errors  errorResponder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, debug bool) *AuthHandler {
	return &AuthHandler{service: service, errors: errorResponder{debug: debug}}
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type confirmResetRequest struct {
	OOBCode     string `json:"oobCode"`
	NewPassword string `json:"newPassword"`
}

type authResponse struct {
	Message    string      `json:"message"`
	Token      string      `json:"token"`
	User       userSummary `json:"user"`
	RedirectTo string      `json:"redirectTo,omitempty"`
}

type resetResponse struct {
	Message   string `json:"message"`
	ResetLink string `json:"resetLink,omitempty"`
}

// Register は自己登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message: "User created successfully",
		Token:   result.Token,
		User:    newUserSummary(result.User),
	})
}

// Login はログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	user := newUserSummary(result.User)
	active := result.User.Active
	user.IsActive = &active
	writeJSON(w, http.StatusOK, authResponse{
		Message:    "Login successful",
		Token:      result.Token,
		User:       user,
		RedirectTo: result.RedirectTo,
	})
}

// Profile は認証済みユーザーのプロフィールを返す。
// GET /auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": identityDetail(id)})
}

// Logout はログアウトを処理する。トークンはステートレスなためサーバー側の状態はない。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := identityOrUnauthorized(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logout successful"})
}

// VerifyToken はトークンが有効であることを返す。
// GET /auth/verify-token
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user": map[string]string{
			"uid":   id.ID,
			"email": id.Email,
			"role":  string(id.Role),
		},
	})
}

// RequestPasswordReset はパスワードリセットリンクの発行を要求する。
// メールアドレスの登録有無にかかわらず同じメッセージを返す。
// POST /auth/reset-password
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	link, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Message: auth.ResetRequestedMessage, ResetLink: link})
}

// ConfirmPasswordReset はリセットコードで新しいパスワードを設定する。
// POST /auth/reset-password/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req.OOBCode, req.NewPassword); err != nil {
		h.errors.handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset successfully"})
}

// compile-time interface check
var _ AuthServiceInterface = (*auth.Service)(nil)
