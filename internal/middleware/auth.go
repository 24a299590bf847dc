// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/travelbook/internal/model"
	"github.com/hitoshi/travelbook/internal/token"
)

// 認証判定の結果ラベル
const (
	OutcomeAllowed         = "allowed"
	OutcomeMissingToken    = "missing_token"
	OutcomeInvalidToken    = "invalid_token"
	OutcomeUnknownUser     = "unknown_user"
	OutcomeInactive        = "inactive"
	OutcomeResolveError    = "resolve_error"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeForbidden       = "forbidden"
)

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みIDを格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// UserResolver はユーザーディレクトリの参照に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserResolver interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// DecisionRecorder は認証判定の結果を記録する。
type DecisionRecorder interface {
	RecordAuthDecision(outcome string)
}

// Identity はゲートウェイを通過したリクエストの主体。
// ディレクトリの最新レコードから1回だけ構築し、以降は読み取り専用として扱う。
type Identity struct {
	ID          string
	Email       string
	Role        model.Role // ディレクトリ上の現在のロール
	Active      bool
	FirstName   string
	LastName    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
	TokenRole   model.Role // トークン発行時点のロール
}

// NewIdentity はディレクトリのレコードとトークンのクレームからIdentityを構築する。
func NewIdentity(u *model.User, claims *token.Claims) *Identity {
	id := &Identity{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Active:      u.Active,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
	if claims != nil {
		id.TokenRole = claims.Role
	}
	return id
}

// HasRole は現在のロールが指定ロールのいずれかに一致するかを返す。
func (i *Identity) HasRole(roles ...model.Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin は管理者かどうかを返す。
func (i *Identity) IsAdmin() bool {
	return i.Role == model.RoleAdmin
}

// IdentityFromContext はリクエストコンテキストから認証済みIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil
}

// ContextWithIdentity はコンテキストに認証済みIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// AuthGateway はトークン検証、ディレクトリ参照、状態確認、ロール判定を行う。
type AuthGateway struct {
	verifier TokenVerifier
	resolver UserResolver
	recorder DecisionRecorder
	logger   *slog.Logger
}

// NewAuthGateway はAuthGatewayを生成する。recorderはnilでもよい。
func NewAuthGateway(verifier TokenVerifier, resolver UserResolver, recorder DecisionRecorder, logger *slog.Logger) *AuthGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthGateway{
		verifier: verifier,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
	}
}

// NewAuthMiddleware はBearerトークンを検証して認証済みIDを注入するミドルウェアを返す。
func NewAuthMiddleware(verifier TokenVerifier, resolver UserResolver, recorder DecisionRecorder) func(next http.Handler) http.Handler {
	return NewAuthGateway(verifier, resolver, recorder, nil).Authenticate
}

func (g *AuthGateway) record(outcome string) {
	if g.recorder != nil {
		g.recorder.RecordAuthDecision(outcome)
	}
}

// Authenticate は各段階を順に評価し、失敗した段階で応答を確定する。
//  1. Authorizationヘッダーからトークンを抽出
//  2. トークンを検証
//  3. ディレクトリから最新のユーザーを取得
//  4. アカウントの有効状態を確認
//  5. Identityをコンテキストに注入
func (g *AuthGateway) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			g.record(OutcomeMissingToken)
			WriteAPIError(w, model.NewUnauthenticatedError("Authorization header missing or invalid format"))
			return
		}

		claims, err := g.verifier.Verify(raw)
		if err != nil {
			g.record(OutcomeInvalidToken)
			g.logger.Debug("token verification failed",
				slog.String("error", err.Error()),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)
			WriteAPIError(w, model.NewInvalidTokenError())
			return
		}

		user, err := g.resolver.FindByID(r.Context(), claims.UserID)
		if err != nil {
			g.record(OutcomeResolveError)
			g.logger.Error("failed to resolve user",
				slog.String("user_id", claims.UserID),
				slog.String("error", err.Error()),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)
			WriteInternalServerError(w)
			return
		}
		if user == nil {
			g.record(OutcomeUnknownUser)
			WriteAPIError(w, model.NewUnauthenticatedError("User not found"))
			return
		}

		if !user.Active {
			g.record(OutcomeInactive)
			WriteAPIError(w, model.NewAccountDeactivatedError())
			return
		}

		g.record(OutcomeAllowed)
		setRequestUser(r.Context(), user.ID)
		ctx := ContextWithIdentity(r.Context(), NewIdentity(user, claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthenticated は認証済みIDがないリクエストを401で拒否する。
func (g *AuthGateway) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			g.record(OutcomeUnauthenticated)
			WriteAPIError(w, model.NewUnauthenticatedError("Authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole は現在のロールが指定ロールのいずれにも一致しない場合に403を返す。
// 判定にはトークンのロールではなくディレクトリ上のロールを使う。
func (g *AuthGateway) RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				g.record(OutcomeUnauthenticated)
				WriteAPIError(w, model.NewUnauthenticatedError("Authentication required"))
				return
			}
			if !id.HasRole(roles...) {
				g.record(OutcomeForbidden)
				g.logger.Warn("access denied",
					slog.String("user_id", id.ID),
					slog.String("role", string(id.Role)),
					slog.String("path", r.URL.Path),
				)
				WriteAPIError(w, model.NewRoleRequiredError(roles))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin は管理者以外を403で拒否する。
func (g *AuthGateway) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireRole(model.RoleAdmin)(next)
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキームが異なる場合やトークンが空の場合はfalseを返す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return "", false
	}
	return raw, true
}
