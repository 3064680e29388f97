package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/insurai/claimdesk/internal/model"
)

const (
	defaultDispatchLimit = 50
	maxDispatchLimit     = 500
	defaultDispatchSince = 24 * time.Hour
)

// DispatchLogReader は送信結果の監査ログを参照する。repository.DispatchLogRepositoryが実装する。
type DispatchLogReader interface {
	ListByBatch(ctx context.Context, userID, batchID string) ([]model.DispatchLogEntry, error)
	ListRecent(ctx context.Context, userID string, since time.Time, limit int) ([]model.DispatchLogEntry, error)
}

// DispatchHandler はセッションユーザーの送信履歴を返すHTTPハンドラー。
type DispatchHandler struct {
	logs DispatchLogReader
	now  func() time.Time
}

// NewDispatchHandler はDispatchHandlerを生成する。
func NewDispatchHandler(logs DispatchLogReader) *DispatchHandler {
	return &DispatchHandler{logs: logs, now: time.Now}
}

type dispatchEntryResponse struct {
	BatchID    string         `json:"batch_id"`
	RecordKind string         `json:"record_kind"`
	RecordID   model.RecordID `json:"record_id"`
	Action     string         `json:"action"`
	Outcome    string         `json:"outcome"`
	StatusCode int            `json:"status_code,omitempty"`
	Message    string         `json:"message,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type dispatchListResponse struct {
	Entries []dispatchEntryResponse `json:"entries"`
	Count   int                     `json:"count"`
}

func toDispatchListResponse(entries []model.DispatchLogEntry) dispatchListResponse {
	out := make([]dispatchEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = dispatchEntryResponse{
			BatchID:    e.BatchID,
			RecordKind: e.RecordKind,
			RecordID:   e.RecordID,
			Action:     e.Action,
			Outcome:    string(e.Outcome),
			StatusCode: e.StatusCode,
			Message:    e.Message,
			CreatedAt:  e.CreatedAt,
		}
	}
	return dispatchListResponse{Entries: out, Count: len(out)}
}

// List は直近の送信履歴を新しい順に返す。
// sinceはRFC 3339形式で省略時は24時間前、limitは省略時50件（最大500件）。
// GET /api/dispatches
func (h *DispatchHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(w, r)
	if sess == nil {
		return
	}

	q := r.URL.Query()
	since := h.now().Add(-defaultDispatchSince)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("since must be an RFC 3339 timestamp"))
			return
		}
		since = t
	}

	limit := defaultDispatchLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limit must be a positive integer"))
			return
		}
		limit = min(n, maxDispatchLimit)
	}

	entries, err := h.logs.ListRecent(r.Context(), sess.UserID, since, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDispatchListResponse(entries))
}

// GetBatch は一括操作1回分の送信履歴を返す。
// GET /api/dispatches/{batchID}
func (h *DispatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(w, r)
	if sess == nil {
		return
	}

	entries, err := h.logs.ListByBatch(r.Context(), sess.UserID, chi.URLParam(r, "batchID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDispatchListResponse(entries))
}
