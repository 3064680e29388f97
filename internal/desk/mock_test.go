package desk

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/worker/dispatch"
)

// --- モック定義 ---

type reviewCall struct {
	Action  model.ClaimAction
	ID      model.RecordID
	Remarks string
}

// mockClaimStore はClaimStoreのテスト用モック。
type mockClaimStore struct {
	fetchFunc   func(ctx context.Context, sess *model.Session) ([]model.Claim, error)
	approveFunc func(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error)
	rejectFunc  func(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error)

	mu    sync.Mutex
	calls []reviewCall
}

func (m *mockClaimStore) FetchClaims(ctx context.Context, sess *model.Session) ([]model.Claim, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, sess)
	}
	return nil, nil
}

func (m *mockClaimStore) ApproveClaim(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error) {
	m.record(reviewCall{model.ClaimActionApprove, id, remarks})
	if m.approveFunc != nil {
		return m.approveFunc(ctx, sess, id, remarks)
	}
	return &model.Claim{ID: id, Status: model.ClaimStatusApproved, Remarks: remarks}, nil
}

func (m *mockClaimStore) RejectClaim(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error) {
	m.record(reviewCall{model.ClaimActionReject, id, remarks})
	if m.rejectFunc != nil {
		return m.rejectFunc(ctx, sess, id, remarks)
	}
	return &model.Claim{ID: id, Status: model.ClaimStatusRejected, Remarks: remarks}, nil
}

func (m *mockClaimStore) record(c reviewCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *mockClaimStore) reviewCalls() []reviewCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]reviewCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockNotificationStore はNotificationStoreのテスト用モック。
type mockNotificationStore struct {
	fetchFunc    func(ctx context.Context, sess *model.Session) ([]model.Notification, error)
	markReadFunc func(ctx context.Context, sess *model.Session, id model.RecordID) (*model.Notification, error)

	markReadCount atomic.Int32
}

func (m *mockNotificationStore) FetchNotifications(ctx context.Context, sess *model.Session) ([]model.Notification, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, sess)
	}
	return nil, nil
}

func (m *mockNotificationStore) MarkNotificationRead(ctx context.Context, sess *model.Session, id model.RecordID) (*model.Notification, error) {
	m.markReadCount.Add(1)
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, sess, id)
	}
	return &model.Notification{ID: id, ReadStatus: true}, nil
}

// mockRecorder はDispatchRecorderのテスト用モック。
type mockRecorder struct {
	mu      sync.Mutex
	entries []model.DispatchLogEntry
	err     error
}

func (m *mockRecorder) RecordDispatches(ctx context.Context, entries []model.DispatchLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return m.err
}

// --- ヘルパー ---

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestOptions(buf *bytes.Buffer) Options {
	logger := newTestLogger(buf)
	var n atomic.Int64
	return Options{
		Logger: logger,
		Pool:   dispatch.NewPool(logger, 4),
		NewID: func() string {
			return fmt.Sprintf("id-%d", n.Add(1))
		},
	}
}

func testSession() *model.Session {
	return &model.Session{
		ID:         "sess-1",
		UserID:     "7",
		Role:       model.RoleHR,
		StoreToken: "token",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func pendingClaim(id, amount string) model.Claim {
	return model.Claim{
		ID:           model.RecordID(id),
		Status:       model.ClaimStatusPending,
		EmployeeName: "employee " + id,
		Amount:       model.Amount(amount),
		Documents:    []string{},
		CanModify:    boolPtr(true),
	}
}

func staticClaims(claims ...model.Claim) func(context.Context, *model.Session) ([]model.Claim, error) {
	return func(context.Context, *model.Session) ([]model.Claim, error) {
		out := make([]model.Claim, len(claims))
		for i, c := range claims {
			out[i] = c.Clone()
		}
		return out, nil
	}
}

// loadedClaimDesk はモックの一覧を取得済みのClaimDeskを返す。
func loadedClaimDesk(t *testing.T, s *mockClaimStore, buf *bytes.Buffer) *ClaimDesk {
	t.Helper()
	d := NewClaimDesk(s, newTestOptions(buf))
	if _, err := d.Refresh(context.Background(), testSession()); err != nil {
		t.Fatalf("Refresh がエラーを返した: %v", err)
	}
	return d
}

func findClaim(t *testing.T, d *ClaimDesk, id string) model.Claim {
	t.Helper()
	c, err := d.Claim(model.RecordID(id))
	if err != nil {
		t.Fatalf("Claim(%s) がエラーを返した: %v", id, err)
	}
	return c
}
