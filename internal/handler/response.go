// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/travelbook/internal/middleware"
	"github.com/hitoshi/travelbook/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 1 << 20

// errorResponder はサービス層のエラーをHTTPレスポンスへ変換する。
// debugが真の場合、内部エラーの詳細をレスポンスに含める。
type errorResponder struct {
	debug bool
}

// handle はAPIErrorならカテゴリに応じたステータスで、それ以外は500で応答する。
// 500の詳細はログにのみ記録する。
func (e errorResponder) handle(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", chimw.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	if e.debug {
		middleware.WriteInternalServerErrorWithDebug(w, err.Error())
		return
	}
	middleware.WriteInternalServerError(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvへ読み込む。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("Invalid JSON request body"))
		return false
	}
	return true
}

// identityOrUnauthorized はコンテキストからIdentityを取り出す。存在しない場合は401を書き込む。
func identityOrUnauthorized(w http.ResponseWriter, r *http.Request) (*middleware.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError("Authentication required"))
		return nil, false
	}
	return id, true
}

// formatTime はタイムスタンプをRFC3339（UTC、ミリ秒）で返す。
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

type messageResponse struct {
	Message string `json:"message"`
}
