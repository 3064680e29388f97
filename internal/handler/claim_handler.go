package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/insurai/claimdesk/internal/desk"
	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/reconcile"
)

// ClaimDeskProvider はセッションの請求デスクを提供する。desk.Registryが実装する。
type ClaimDeskProvider interface {
	Claims(sessionID string) *desk.ClaimDesk
}

// ClaimHandler は請求一覧の表示・選択・審査アクションのHTTPハンドラー。
type ClaimHandler struct {
	desks ClaimDeskProvider
}

// NewClaimHandler はClaimHandlerを生成する。
func NewClaimHandler(desks ClaimDeskProvider) *ClaimHandler {
	return &ClaimHandler{desks: desks}
}

// --- レスポンス型 ---

type documentLink struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

type claimResponse struct {
	ID                model.RecordID `json:"id"`
	Status            string         `json:"status"`
	EmployeeName      string         `json:"employee_name"`
	EmployeeIDDisplay string         `json:"employee_id_display"`
	Title             string         `json:"title"`
	PolicyName        string         `json:"policy_name"`
	Description       string         `json:"description,omitempty"`
	Amount            string         `json:"amount"`
	AmountValue       float64        `json:"amount_value"`
	ClaimDate         string         `json:"claim_date"`
	Remarks           string         `json:"remarks"`
	Documents         []documentLink `json:"documents"`
	Actionable        bool           `json:"actionable"`
	Selected          bool           `json:"selected"`
}

type sortResponse struct {
	Key       string `json:"key"`
	Direction string `json:"direction"`
}

type claimViewResponse struct {
	Search string       `json:"search"`
	Status string       `json:"status"`
	Sort   sortResponse `json:"sort"`
}

type claimListResponse struct {
	Claims     []claimResponse   `json:"claims"`
	Statistics model.Statistics  `json:"statistics"`
	View       claimViewResponse `json:"view"`
	Selected   []model.RecordID  `json:"selected"`
	Visible    int               `json:"visible"`
	Eligible   int               `json:"eligible"`
	Total      int               `json:"total"`
	Loaded     bool              `json:"loaded"`
	FetchedAt  *time.Time        `json:"fetched_at,omitempty"`
}

type selectionResponse struct {
	ID       model.RecordID   `json:"id,omitempty"`
	Selected bool             `json:"selected"`
	Count    int              `json:"count"`
	IDs      []model.RecordID `json:"ids"`
}

// --- リクエスト型 ---

type claimViewRequest struct {
	Search        *string `json:"search" validate:"omitempty,max=200"`
	Status        *string `json:"status" validate:"omitempty,oneof=All Pending Approved Rejected"`
	SortKey       *string `json:"sort_key" validate:"omitempty,max=64"`
	SortDirection string  `json:"sort_direction" validate:"omitempty,oneof=asc desc"`
}

type remarksRequest struct {
	Remarks string `json:"remarks" validate:"max=2000"`
}

// --- 変換 ---

func toClaimResponse(c model.Claim, selected map[model.RecordID]bool) claimResponse {
	docs := make([]documentLink, len(c.Documents))
	for i, ref := range c.Documents {
		docs[i] = documentLink{
			Index: i,
			Name:  path.Base(ref),
			URL:   fmt.Sprintf("/api/claims/%s/documents/%d", url.PathEscape(c.ID.String()), i),
		}
	}
	return claimResponse{
		ID:                c.ID,
		Status:            string(c.Status),
		EmployeeName:      c.EmployeeName,
		EmployeeIDDisplay: c.EmployeeIDDisplay,
		Title:             c.Title,
		PolicyName:        c.PolicyName,
		Description:       c.Description,
		Amount:            string(c.Amount),
		AmountValue:       reconcile.ParseAmount(string(c.Amount)),
		ClaimDate:         c.ClaimDate,
		Remarks:           c.Remarks,
		Documents:         docs,
		Actionable:        c.Actionable(),
		Selected:          selected[c.ID],
	}
}

func toClaimListResponse(snap desk.ClaimSnapshot) claimListResponse {
	selected := make(map[model.RecordID]bool, len(snap.Selected))
	for _, id := range snap.Selected {
		selected[id] = true
	}
	claims := make([]claimResponse, len(snap.Claims))
	for i, c := range snap.Claims {
		claims[i] = toClaimResponse(c, selected)
	}
	resp := claimListResponse{
		Claims:     claims,
		Statistics: snap.Statistics,
		View: claimViewResponse{
			Search: snap.View.SearchTerm,
			Status: snap.View.StatusFilter,
			Sort:   sortResponse{Key: string(snap.View.Sort.Key), Direction: string(snap.View.Sort.Direction)},
		},
		Selected: snap.Selected,
		Visible:  len(snap.Claims),
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

// deskFor はリクエストのセッションと請求デスクを返す。
func (h *ClaimHandler) deskFor(w http.ResponseWriter, r *http.Request) (*model.Session, *desk.ClaimDesk) {
	sess := sessionFromRequest(w, r)
	if sess == nil {
		return nil, nil
	}
	return sess, h.desks.Claims(sess.ID)
}

func writeClaimList(w http.ResponseWriter, d *desk.ClaimDesk) {
	writeJSON(w, http.StatusOK, toClaimListResponse(d.Snapshot()))
}

func claimID(r *http.Request) model.RecordID {
	return model.RecordID(chi.URLParam(r, "id"))
}

// List は表示用一覧・集計値・表示パラメータ・選択状態を返す。
// 未取得の場合、またはrefresh=trueが指定された場合はストアから再取得する。
// GET /api/claims
func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
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
	writeClaimList(w, d)
}

// Refresh はストアから請求一覧を再取得する。
// POST /api/claims/refresh
func (h *ClaimHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	if _, err := d.Refresh(r.Context(), sess); err != nil {
		handleServiceError(w, err)
		return
	}
	writeClaimList(w, d)
}

// UpdateView は検索語・ステータスフィルタ・ソートを設定する。指定されたフィールドのみ変更し、
// いずれかが不正な場合は何も変更しない。
// PUT /api/claims/view
func (h *ClaimHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}

	var req claimViewRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	update := desk.ViewUpdate{
		SearchTerm:    req.Search,
		Filter:        req.Status,
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
	writeClaimList(w, d)
}

// ToggleSort は列見出しのクリックに相当し、同じキーの再指定で昇順・降順を切り替える。
// POST /api/claims/sort/{key}
func (h *ClaimHandler) ToggleSort(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	if _, err := d.SetSort(model.SortKey(chi.URLParam(r, "key"))); err != nil {
		handleServiceError(w, err)
		return
	}
	writeClaimList(w, d)
}

// ResetView は検索語とステータスフィルタを初期化し、選択を解除する。
// POST /api/claims/view/reset
func (h *ClaimHandler) ResetView(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	d.ResetView()
	writeClaimList(w, d)
}

// Get は下書きを反映した請求1件を返す。
// GET /api/claims/{id}
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	c, err := d.Claim(claimID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	selected := make(map[model.RecordID]bool)
	for _, id := range d.Snapshot().Selected {
		selected[id] = true
	}
	writeJSON(w, http.StatusOK, toClaimResponse(c, selected))
}

// SetRemarks は備考の下書きを保存する。ストアへは送信しない。
// PUT /api/claims/{id}/remarks
func (h *ClaimHandler) SetRemarks(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}

	var req remarksRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	id := claimID(r)
	if err := d.SetDraftRemark(id, req.Remarks); err != nil {
		handleServiceError(w, err)
		return
	}
	c, err := d.Claim(id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimResponse(c, nil))
}

// Approve は請求1件を承認する。
// POST /api/claims/{id}/approve
func (h *ClaimHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, model.ClaimActionApprove)
}

// Reject は請求1件を却下する。
// POST /api/claims/{id}/reject
func (h *ClaimHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, model.ClaimActionReject)
}

func (h *ClaimHandler) review(w http.ResponseWriter, r *http.Request, action model.ClaimAction) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}

	var (
		c   model.Claim
		err error
	)
	if action == model.ClaimActionReject {
		c, err = d.Reject(r.Context(), sess, claimID(r))
	} else {
		c, err = d.Approve(r.Context(), sess, claimID(r))
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimResponse(c, nil))
}

// ToggleSelect は請求の選択状態を反転する。対象外の請求は選択されない。
// POST /api/claims/{id}/select
func (h *ClaimHandler) ToggleSelect(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	id := claimID(r)
	selected := d.ToggleSelection(id)
	ids := d.Snapshot().Selected
	writeJSON(w, http.StatusOK, selectionResponse{ID: id, Selected: selected, Count: len(ids), IDs: ids})
}

// SelectAll は表示中の対象請求の全選択・全解除を切り替える。
// POST /api/claims/selection/all
func (h *ClaimHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	n := d.SelectAll()
	writeJSON(w, http.StatusOK, selectionResponse{Selected: n > 0, Count: n, IDs: d.Snapshot().Selected})
}

// ClearSelection は選択を解除する。
// POST /api/claims/selection/clear
func (h *ClaimHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	_, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	d.ClearSelection()
	writeJSON(w, http.StatusOK, selectionResponse{IDs: []model.RecordID{}})
}

// BulkApprove は選択中の請求を一括承認する。
// 各請求の成否は独立しており、結果はレコードごとにレポートされる。
// POST /api/claims/bulk/approve
func (h *ClaimHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	writeJSON(w, http.StatusOK, d.BulkApprove(r.Context(), sess))
}

// BulkReject は選択中の請求を一括却下する。
// POST /api/claims/bulk/reject
func (h *ClaimHandler) BulkReject(w http.ResponseWriter, r *http.Request) {
	sess, d := h.deskFor(w, r)
	if d == nil {
		return
	}
	writeJSON(w, http.StatusOK, d.BulkReject(r.Context(), sess))
}
