// Package handler はダッシュボード向けのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/insurai/claimdesk/internal/middleware"
	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/security"
	"github.com/insurai/claimdesk/internal/store"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeRequest はリクエストボディをdstに読み込み、validateタグで検証する。
// 失敗した場合は400レスポンスを書き込んでfalseを返す。
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err := dec.Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(describeValidationError(err)))
		return false
	}
	return true
}

// describeValidationError は検証エラーを「フィールド: 条件」の一覧に変換する。
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", jsonFieldName(fe.StructField()), rule))
	}
	return strings.Join(parts, ", ")
}

// jsonFieldName はGoのフィールド名をスネークケースのJSON名に変換する。
// 連続する大文字（UserIDなど）は1語として扱う。
func jsonFieldName(field string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range field {
		if r >= 'A' && r <= 'Z' {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
			prevLower = false
		} else {
			prevLower = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sessionFromRequest はセッションミドルウェアが注入したセッションを取得する。
// 取得できない場合は401レスポンスを書き込んでnilを返す。
func sessionFromRequest(w http.ResponseWriter, r *http.Request) *model.Session {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil
	}
	return sess
}

// handleServiceError はデスク・ストア・認証から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var storeErr *store.Error
	switch {
	case errors.Is(err, store.ErrMissingToken):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
		return
	case errors.Is(err, security.ErrDocumentBlocked):
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewDocumentBlockedError())
		return
	case errors.Is(err, store.ErrDocumentTooLarge):
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewStoreRequestFailedError("書類がサイズ上限を超えています"))
		return
	case errors.As(err, &storeErr):
		if storeErr.Unauthorized() {
			writeAPIErrorResponse(w, http.StatusForbidden, model.NewStoreUnauthorizedError())
			return
		}
		slog.Warn("store request failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewStoreRequestFailedError(store.UserMessage(err)))
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeRemarkRequired,
		model.ErrCodeInvalidFilter,
		model.ErrCodeInvalidSortKey,
		model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeSessionExpired, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeStoreUnauthorized, model.ErrCodeDocumentBlocked:
		return http.StatusForbidden
	case model.ErrCodeClaimNotFound, model.ErrCodeNotificationNotFound, model.ErrCodeDocumentNotFound:
		return http.StatusNotFound
	case model.ErrCodeClaimNotActionable:
		return http.StatusConflict
	case model.ErrCodeStoreRequestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
