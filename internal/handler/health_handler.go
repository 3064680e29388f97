package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// HealthChecker はデータベース等の依存先への到達性を確認する。
type HealthChecker func(ctx context.Context) error

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// NewHealthHandler は依存先の到達性を返すヘルスチェックハンドラーを返す。
// checkがnilの場合はプロセスの生存のみを返す。
// GET /health
func NewHealthHandler(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check == nil {
			writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "unchecked"})
			return
		}
		if err := check(r.Context()); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
	}
}
