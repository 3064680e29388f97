package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/insurai/claimdesk/internal/auth"
	"github.com/insurai/claimdesk/internal/middleware"
	"github.com/insurai/claimdesk/internal/model"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	Login(ctx context.Context, req auth.LoginRequest) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// DeskDropper はログアウト時にセッションのデスクを破棄する。
type DeskDropper interface {
	Drop(sessionID string)
}

// SessionHandlerConfig はセッションハンドラーの設定。
type SessionHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// SessionHandler はストアトークンによるセッション確立・破棄のHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
	desks   DeskDropper
	config  SessionHandlerConfig
	now     func() time.Time
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface, desks DeskDropper, config SessionHandlerConfig) *SessionHandler {
	return &SessionHandler{
		service: service,
		desks:   desks,
		config:  config,
		now:     time.Now,
	}
}

// sessionRequest はセッション確立リクエストのボディ。
type sessionRequest struct {
	StoreToken string `json:"store_token" validate:"required,max=8192"`
	UserID     string `json:"user_id" validate:"required,max=64"`
	Role       string `json:"role" validate:"omitempty,oneof=EMPLOYEE HR AGENT ADMIN"`
}

// sessionResponse はセッション情報のレスポンス。ストアトークンは返さない。
type sessionResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toSessionResponse(s *model.Session) sessionResponse {
	return sessionResponse{
		UserID:    s.UserID,
		Role:      string(s.Role),
		ExpiresAt: s.ExpiresAt,
	}
}

// Create はストアのログインで発行済みのトークンを登録し、セッションCookieを発行する。
// POST /api/session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), auth.LoginRequest{
		StoreToken: req.StoreToken,
		UserID:     req.UserID,
		Role:       model.Role(req.Role),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// Cookieの有効期間はトークンの有効期限に合わせる
	maxAge := int(session.ExpiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// Delete はセッションとそのデスクを破棄する。
// DELETE /api/session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		h.desks.Drop(cookie.Value)
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッション情報を返す。
// GET /api/session
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}
