package handler

import (
	"context"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/store"
)

// DocumentFetcherInterface は添付書類の取得を行う。store.DocumentFetcherが実装する。
type DocumentFetcherInterface interface {
	Fetch(ctx context.Context, sess *model.Session, ref string) (*store.Document, error)
}

// DocumentHandler は請求の添付書類を中継するHTTPハンドラー。
type DocumentHandler struct {
	desks   ClaimDeskProvider
	fetcher DocumentFetcherInterface
}

// NewDocumentHandler はDocumentHandlerを生成する。
func NewDocumentHandler(desks ClaimDeskProvider, fetcher DocumentFetcherInterface) *DocumentHandler {
	return &DocumentHandler{desks: desks, fetcher: fetcher}
}

// Get は請求のindex番目の添付書類を取得して返す。
// 書類の参照は取得済みの請求一覧に含まれるもののみ受け付ける。
// GET /api/claims/{id}/documents/{index}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(w, r)
	if sess == nil {
		return
	}

	id := model.RecordID(chi.URLParam(r, "id"))
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("document index must be a non-negative integer"))
		return
	}

	c, err := h.desks.Claims(sess.ID).Claim(id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if index >= len(c.Documents) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewDocumentNotFoundError(id, index))
		return
	}

	doc, err := h.fetcher.Fetch(r.Context(), sess, c.Documents[index])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}
