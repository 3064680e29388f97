package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/insurai/claimdesk/internal/desk"
	"github.com/insurai/claimdesk/internal/middleware"
	"github.com/insurai/claimdesk/internal/model"
)

// --- モック定義 ---

// mockClaimStore はdesk.ClaimStoreのモック実装。
type mockClaimStore struct {
	fetchFn   func(ctx context.Context, sess *model.Session) ([]model.Claim, error)
	approveFn func(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error)
	rejectFn  func(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error)

	mu         sync.Mutex
	fetchCount int
}

func (m *mockClaimStore) FetchClaims(ctx context.Context, sess *model.Session) ([]model.Claim, error) {
	m.mu.Lock()
	m.fetchCount++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, sess)
	}
	return nil, nil
}

func (m *mockClaimStore) ApproveClaim(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, sess, id, remarks)
	}
	return &model.Claim{ID: id, Status: model.ClaimStatusApproved, Remarks: remarks}, nil
}

func (m *mockClaimStore) RejectClaim(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, sess, id, remarks)
	}
	return &model.Claim{ID: id, Status: model.ClaimStatusRejected, Remarks: remarks}, nil
}

func (m *mockClaimStore) fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCount
}

// mockNotificationStore はdesk.NotificationStoreのモック実装。
type mockNotificationStore struct {
	fetchFn    func(ctx context.Context, sess *model.Session) ([]model.Notification, error)
	markReadFn func(ctx context.Context, sess *model.Session, id model.RecordID) (*model.Notification, error)
}

func (m *mockNotificationStore) FetchNotifications(ctx context.Context, sess *model.Session) ([]model.Notification, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, sess)
	}
	return nil, nil
}

func (m *mockNotificationStore) MarkNotificationRead(ctx context.Context, sess *model.Session, id model.RecordID) (*model.Notification, error) {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, sess, id)
	}
	return &model.Notification{ID: id, ReadStatus: true}, nil
}

// --- テストデータ ---

var testSession = &model.Session{
	ID:         "sess-1",
	UserID:     "hr-7",
	Role:       model.RoleHR,
	StoreToken: "token",
	ExpiresAt:  time.Now().Add(time.Hour),
}

func boolPtr(b bool) *bool { return &b }

func sampleClaims() []model.Claim {
	return []model.Claim{
		{ID: "1", Status: model.ClaimStatusPending, EmployeeName: "Asha Rao", EmployeeIDDisplay: "1001", Title: "Hospitalization", PolicyName: "Gold Health", Amount: "500", ClaimDate: "2024-03-01", Documents: []string{"/uploads/bill.pdf"}, CanModify: boolPtr(true)},
		{ID: "2", Status: model.ClaimStatusApproved, EmployeeName: "Vikram Shah", EmployeeIDDisplay: "1002", Title: "Dental", PolicyName: "Basic Dental", Amount: "300", ClaimDate: "2024-01-15", Documents: []string{}},
		{ID: "3", Status: model.ClaimStatusPending, EmployeeName: "Meera Iyer", EmployeeIDDisplay: "2001", Title: "Vision", PolicyName: "Gold Health", Amount: "1200.5", ClaimDate: "2024-02-20", Documents: []string{}, CanModify: boolPtr(true)},
	}
}

func sampleNotifications() []model.Notification {
	return []model.Notification{
		{ID: "n1", Title: "Claim approved", Message: "Your dental claim was approved", CreatedAt: "2024-03-02T08:00:00"},
		{ID: "n2", Title: "Policy renewal", Message: "Gold Health renews next month", ReadStatus: true, CreatedAt: "2024-01-10T08:00:00"},
		{ID: "n3", Title: "New query", Message: "Agent replied", CreatedAt: "2024-02-01T08:00:00"},
	}
}

// newTestRegistry はモックストアを使うデスクレジストリを生成する。
func newTestRegistry(claims *mockClaimStore, notifications *mockNotificationStore) *desk.Registry {
	if claims == nil {
		claims = &mockClaimStore{fetchFn: func(context.Context, *model.Session) ([]model.Claim, error) {
			return sampleClaims(), nil
		}}
	}
	if notifications == nil {
		notifications = &mockNotificationStore{fetchFn: func(context.Context, *model.Session) ([]model.Notification, error) {
			return sampleNotifications(), nil
		}}
	}
	opts := desk.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	return desk.NewRegistry(claims, notifications, opts, time.Hour)
}

// --- リクエストヘルパー ---

// withSession はテスト用にセッションをコンテキストに注入するヘルパー。
func withSession(r *http.Request, sess *model.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), sess))
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// decodeBody はレスポンスボディをvにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// loadClaims はテスト対象のセッションのデスクに請求一覧を読み込む。
func loadClaims(t *testing.T, reg *desk.Registry) *desk.ClaimDesk {
	t.Helper()
	d := reg.Claims(testSession.ID)
	if _, err := d.Refresh(context.Background(), testSession); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return d
}
