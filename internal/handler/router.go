package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/insurai/claimdesk/internal/desk"
	"github.com/insurai/claimdesk/internal/middleware"
)

// DeskRegistry はセッションごとのデスクを管理する。desk.Registryが実装する。
type DeskRegistry interface {
	ClaimDeskProvider
	NotificationDeskProvider
	DeskDropper
}

var _ DeskRegistry = (*desk.Registry)(nil)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// セッション
	SessionService SessionServiceInterface
	SessionConfig  SessionHandlerConfig

	// デスク
	Desks           DeskRegistry
	DocumentFetcher DocumentFetcherInterface
	DispatchLogs    DispatchLogReader

	// 運用
	HealthCheck    HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Session → CSRF → RateLimit(General)
//
// 一括操作にはさらにRateLimit(Dispatch)を適用する。
// /health、/metrics、CSRFトークン発行、セッション確立はセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	sessionHandler := NewSessionHandler(deps.SessionService, deps.Desks, deps.SessionConfig)
	claimHandler := NewClaimHandler(deps.Desks)
	notificationHandler := NewNotificationHandler(deps.Desks)
	documentHandler := NewDocumentHandler(deps.Desks, deps.DocumentFetcher)
	dispatchHandler := NewDispatchHandler(deps.DispatchLogs)
	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	r.With(csrf).Post("/api/session", sessionHandler.Create)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(csrf)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/session", sessionHandler.Me)
		r.Delete("/api/session", sessionHandler.Delete)

		// 請求
		r.Route("/api/claims", func(r chi.Router) {
			r.Get("/", claimHandler.List)
			r.Post("/refresh", claimHandler.Refresh)
			r.Put("/view", claimHandler.UpdateView)
			r.Post("/view/reset", claimHandler.ResetView)
			r.Post("/sort/{key}", claimHandler.ToggleSort)
			r.Post("/selection/all", claimHandler.SelectAll)
			r.Post("/selection/clear", claimHandler.ClearSelection)

			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.DispatchMiddleware())
				r.Post("/bulk/approve", claimHandler.BulkApprove)
				r.Post("/bulk/reject", claimHandler.BulkReject)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", claimHandler.Get)
				r.Put("/remarks", claimHandler.SetRemarks)
				r.Post("/approve", claimHandler.Approve)
				r.Post("/reject", claimHandler.Reject)
				r.Post("/select", claimHandler.ToggleSelect)
				r.Get("/documents/{index}", documentHandler.Get)
			})
		})

		// 通知
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Post("/refresh", notificationHandler.Refresh)
			r.Put("/view", notificationHandler.UpdateView)
			r.Post("/view/reset", notificationHandler.ResetView)
			r.Post("/sort/{key}", notificationHandler.ToggleSort)
			r.Post("/selection/all", notificationHandler.SelectAll)
			r.Post("/selection/clear", notificationHandler.ClearSelection)

			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.DispatchMiddleware())
				r.Post("/bulk/read", notificationHandler.BulkMarkRead)
				r.Post("/read-all", notificationHandler.MarkAllRead)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/read", notificationHandler.MarkRead)
				r.Post("/select", notificationHandler.ToggleSelect)
			})
		})

		// 送信履歴
		r.Route("/api/dispatches", func(r chi.Router) {
			r.Get("/", dispatchHandler.List)
			r.Get("/{batchID}", dispatchHandler.GetBatch)
		})
	})

	return r
}
