package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/insurai/claimdesk/internal/desk"
	"github.com/insurai/claimdesk/internal/model"
)

// NotificationDeskProvider はセッションの通知デスクを提供する。desk.Registryが実装する。
type NotificationDeskProvider interface {
	Notifications(sessionID string) *desk.NotificationDesk
}

// NotificationHandler は通知一覧の表示・選択・既読化のHTTPハンドラー。
type NotificationHandler struct {
	desks NotificationDeskProvider
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(desks NotificationDeskProvider) *NotificationHandler {
	return &NotificationHandler{desks: desks}
}

type notificationResponse struct {
	ID         model.RecordID `json:"id"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	ReadStatus bool           `json:"read_status"`
	CreatedAt  string         `json:"created_at"`
	Selected   bool           `json:"selected"`
}

type notificationViewResponse struct {
	Search string       `json:"search"`
	Filter string       `json:"filter"`
	Sort   sortResponse `json:"sort"`
}

type notificationListResponse struct {
	Notifications []notificationResponse   `json:"notifications"`
	Statistics    model.Statistics         `json:"statistics"`
	View          notificationViewResponse `json:"view"`
	Selected      []model.RecordID         `json:"selected"`
	Visible       int                      `json:"visible"`
	Eligible      int                      `json:"eligible"`
	Total         int                      `json:"total"`
	Loaded        bool                     `json:"loaded"`
	FetchedAt     *time.Time               `json:"fetched_at,omitempty"`
}

type notificationViewRequest struct {
	Search        *string `json:"search" validate:"omitempty,max=200"`
	Filter        *string `json:"filter" validate:"omitempty,oneof=all unread read"`
	SortKey       *string `json:"sort_key" validate:"omitempty,max=64"`
	SortDirection string  `json:"sort_direction" validate:"omitempty,oneof=asc desc"`
}

func toNotificationResponse(n model.Notification, selected bool) notificationResponse {
	return notificationResponse{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		ReadStatus: n.ReadStatus,
		CreatedAt:  n.CreatedAt,
		Selected:   selected,
	}
}

func toNotificationListResponse(snap desk.NotificationSnapshot) notificationListResponse {
	selected := make(map[model.RecordID]bool, len(snap.Selected))
	for _, id := range snap.Selected {
		selected[id] = true
	}
	items := make([]notificationResponse, len(snap.Notifications))
	for i, n := range snap.Notifications {
		items[i] = toNotificationResponse(n, selected[n.ID])
	}
	resp := notificationListResponse{
		Notifications: items,
		Statistics:    snap.Statistics,
		View: notificationViewResponse{
			Search: snap.View.SearchTerm,
			Filter: string(snap.View.Filter),
			Sort:   sortResponse{Key: string(snap.View.Sort.Key), Direction: string(snap.View.Sort.Direction)},
		},
		Selected: snap.Selected,
		Visible:  len(snap.Notifications),
		Eligible: snap.Eligible,
		Total:    snap.Total,
		Loaded:   snap.Loaded,
	}
	if snap.Loaded {
		t := snap.FetchedAt
		resp.FetchedAt = &t
	}
	return resp
}

func (h *NotificationHandler) deskFor(w http.ResponseWriter, r *http.Request) (*model.Session, *desk.NotificationDesk) {
	sess := sessionFromRequest(w, r)
	if sess == nil {
		return nil, nil
	}
	return sess, h.desks.Notifications(sess.ID)
}

func writeNotificationList(w http.ResponseWriter, d *desk.NotificationDesk) {
	writeJSON(w, http.StatusOK, toNotificationListResponse(d.Snapshot()))
}

// List は通知一覧を返す。未取得の場合、またはrefresh=trueの場合はストアから再取得する。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}

	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	if refresh || !d.Snapshot().Loaded {
		if _, err := d.Refresh(r.Context(), sess); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	writeNotificationList(w, d)
}

// Refresh はストアから通知一覧を再取得する。
// POST /api/notifications/refresh
func (h *NotificationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	if _, err := d.Refresh(r.Context(), sess); err != nil {
		handleServiceError(w, err)
		return
	}
	writeNotificationList(w, d)
}

// UpdateView は検索語・既読状態フィルタ・ソートを設定する。
// PUT /api/notifications/view
func (h *NotificationHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}

	var req notificationViewRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	update := desk.ViewUpdate{
		SearchTerm:    req.Search,
		Filter:        req.Filter,
		SortDirection: model.SortDirection(req.SortDirection),
	}
	if req.SortKey != nil {
		key := model.SortKey(*req.SortKey)
		update.SortKey = &key
	}
	if err := d.UpdateView(update); err != nil {
		handleServiceError(w, err)
		return
	}
	writeNotificationList(w, d)
}

// ToggleSort は同じキーの再指定で昇順・降順を切り替える。
// POST /api/notifications/sort/{key}
func (h *NotificationHandler) ToggleSort(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	if _, err := d.SetSort(model.SortKey(chi.URLParam(r, "key"))); err != nil {
		handleServiceError(w, err)
		return
	}
	writeNotificationList(w, d)
}

// ResetView は検索語とフィルタを初期化し、選択を解除する。
// POST /api/notifications/view/reset
func (h *NotificationHandler) ResetView(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	d.ResetView()
	writeNotificationList(w, d)
}

// MarkRead は通知1件を既読にする。既読済みの通知はストアに送信しない。
// POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	n, err := d.MarkRead(r.Context(), sess, model.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(n, false))
}

// ToggleSelect は通知の選択状態を反転する。既読通知は選択されない。
// POST /api/notifications/{id}/select
func (h *NotificationHandler) ToggleSelect(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	id := model.RecordID(chi.URLParam(r, "id"))
	selected := d.ToggleSelection(id)
	ids := d.Snapshot().Selected
	writeJSON(w, http.StatusOK, selectionResponse{ID: id, Selected: selected, Count: len(ids), IDs: ids})
}

// SelectAll は表示中の未読通知の全選択・全解除を切り替える。
// POST /api/notifications/selection/all
func (h *NotificationHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	n := d.SelectAll()
	writeJSON(w, http.StatusOK, selectionResponse{Selected: n > 0, Count: n, IDs: d.Snapshot().Selected})
}

// ClearSelection は選択を解除する。
// POST /api/notifications/selection/clear
func (h *NotificationHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	d.ClearSelection()
	writeJSON(w, http.StatusOK, selectionResponse{IDs: []model.RecordID{}})
}

// BulkMarkRead は選択中の通知を一括で既読にする。
// POST /api/notifications/bulk/read
func (h *NotificationHandler) BulkMarkRead(w http.ResponseWriter, r *http.Request) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	writeJSON(w, http.StatusOK, d.BulkMarkRead(r.Context(), sess))
}

// MarkAllRead は選択に関係なくすべての未読通知を既読にする。
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	writeJSON(w, http.StatusOK, d.MarkAllRead(r.Context(), sess))
}
