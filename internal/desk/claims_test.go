package desk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/store"
)

func TestClaimDesk_EndToEnd_ApproveSingleSelected(t *testing.T) {
	var buf bytes.Buffer
	s := &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "500"), pendingClaim("2", "300"))}
	d := loadedClaimDesk(t, s, &buf)

	if err := d.SetDraftRemark("1", "ok"); err != nil {
		t.Fatalf("SetDraftRemark がエラーを返した: %v", err)
	}
	if !d.ToggleSelection("1") {
		t.Fatal("ToggleSelection(1) で選択されるべき")
	}

	report := d.BulkApprove(context.Background(), testSession())

	want := []reviewCall{{Action: model.ClaimActionApprove, ID: "1", Remarks: "ok"}}
	if diff := cmp.Diff(want, s.reviewCalls()); diff != "" {
		t.Errorf("送信されたリクエスト (-want +got):\n%s", diff)
	}
	if report.Dispatched != 1 || len(report.Succeeded) != 1 || len(report.Failed) != 0 {
		t.Errorf("report = %+v", report)
	}

	if c := findClaim(t, d, "1"); c.Status != model.ClaimStatusApproved || c.Remarks != "ok" {
		t.Errorf("claim 1 = %+v, want Approved with remarks ok", c)
	}
	if c := findClaim(t, d, "2"); c.Status != model.ClaimStatusPending {
		t.Errorf("claim 2 status = %s, want Pending", c.Status)
	}

	snap := d.Snapshot()
	if len(snap.Selected) != 0 {
		t.Errorf("送信完了後の選択 = %v, want empty", snap.Selected)
	}
}

func TestClaimDesk_BulkApprove_SkipsRecordWithoutRemark(t *testing.T) {
	var buf bytes.Buffer
	s := &mockClaimStore{fetchFunc: staticClaims(
		pendingClaim("a", "100"), pendingClaim("b", "200"), pendingClaim("c", "300"),
	)}
	d := loadedClaimDesk(t, s, &buf)

	d.SetDraftRemark("a", "verified")
	d.SetDraftRemark("b", "   ")
	d.SetDraftRemark("c", "receipts attached")
	for _, id := range []model.RecordID{"a", "b", "c"} {
		d.ToggleSelection(id)
	}

	report := d.BulkApprove(context.Background(), testSession())

	calls := s.reviewCalls()
	if len(calls) != 2 {
		t.Fatalf("送信数 = %d, want 2", len(calls))
	}
	for _, c := range calls {
		if c.ID == "b" {
			t.Error("備考が空の請求 b が送信された")
		}
	}
	if diff := cmp.Diff([]model.RecordID{"b"}, report.SkippedInvalid); diff != "" {
		t.Errorf("SkippedInvalid (-want +got):\n%s", diff)
	}
	if len(report.Notices) != 0 {
		t.Errorf("検証による除外は通知しない: %v", report.Notices)
	}

	b := findClaim(t, d, "b")
	if b.Status != model.ClaimStatusPending || b.Remarks != "   " {
		t.Errorf("claim b = %+v, want 変更なし", b)
	}
	if len(d.Snapshot().Selected) != 0 {
		t.Error("送信完了後は選択が空であるべき")
	}
}

func TestClaimDesk_BulkApprove_FailureIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	s := &mockClaimStore{
		fetchFunc: staticClaims(pendingClaim("A", "100"), pendingClaim("B", "200")),
		approveFunc: func(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error) {
			if id == "A" {
				return nil, &store.Error{Op: store.OpApproveClaim, StatusCode: http.StatusForbidden, Err: errors.New("forbidden")}
			}
			return &model.Claim{ID: id, Status: model.ClaimStatusApproved}, nil
		},
	}
	d := loadedClaimDesk(t, s, &buf)
	d.SetDraftRemark("A", "ok")
	d.SetDraftRemark("B", "ok")
	d.ToggleSelection("A")
	d.ToggleSelection("B")

	report := d.BulkApprove(context.Background(), testSession())

	if len(report.Notices) != 1 {
		t.Fatalf("通知数 = %d, want 1: %v", len(report.Notices), report.Notices)
	}
	if !strings.Contains(report.Notices[0], "A") || !strings.Contains(report.Notices[0], "アクセスが拒否されました") {
		t.Errorf("notice = %q", report.Notices[0])
	}
	if len(report.Failed) != 1 || report.Failed[0].ID != "A" || report.Failed[0].StatusCode != http.StatusForbidden {
		t.Errorf("Failed = %+v", report.Failed)
	}
	if diff := cmp.Diff([]model.RecordID{"B"}, report.Succeeded); diff != "" {
		t.Errorf("Succeeded (-want +got):\n%s", diff)
	}

	if a := findClaim(t, d, "A"); a.Status != model.ClaimStatusPending || a.Remarks != "ok" {
		t.Errorf("claim A = %+v, want Pending with draft kept", a)
	}
	if b := findClaim(t, d, "B"); b.Status != model.ClaimStatusApproved {
		t.Errorf("claim B status = %s, want Approved", b.Status)
	}
	if !strings.Contains(buf.String(), "請求のアクション送信に失敗しました") {
		t.Error("送信失敗がログに記録されていない")
	}
}

func TestClaimDesk_BulkReject_PanicBecomesFailure(t *testing.T) {
	var buf bytes.Buffer
	s := &mockClaimStore{
		fetchFunc: staticClaims(pendingClaim("x", "1"), pendingClaim("y", "2")),
		rejectFunc: func(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error) {
			if id == "x" {
				panic("unexpected response")
			}
			return nil, nil
		},
	}
	d := loadedClaimDesk(t, s, &buf)
	d.SetDraftRemark("x", "dup")
	d.SetDraftRemark("y", "dup")
	d.ToggleSelection("x")
	d.ToggleSelection("y")

	report := d.BulkReject(context.Background(), testSession())

	if len(report.Failed) != 1 || report.Failed[0].ID != "x" {
		t.Fatalf("Failed = %+v, want x のみ", report.Failed)
	}
	// ストアが更新後の請求を返さなくてもアクションが示すステータスになる
	if y := findClaim(t, d, "y"); y.Status != model.ClaimStatusRejected {
		t.Errorf("claim y status = %s, want Rejected", y.Status)
	}
}

func TestClaimDesk_Approve_RequiresRemark(t *testing.T) {
	var buf bytes.Buffer
	s := &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "500"))}
	d := loadedClaimDesk(t, s, &buf)

	for _, remark := range []string{"", "  \t", "\n"} {
		d.SetDraftRemark("1", remark)
		_, err := d.Approve(context.Background(), testSession(), "1")

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRemarkRequired {
			t.Errorf("備考 %q: err = %v, want REMARK_REQUIRED", remark, err)
		}
	}
	if len(s.reviewCalls()) != 0 {
		t.Errorf("検証エラー時にストアへ送信された: %v", s.reviewCalls())
	}
}

func TestClaimDesk_Reject_Succeeds(t *testing.T) {
	var buf bytes.Buffer
	s := &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "500"))}
	d := loadedClaimDesk(t, s, &buf)
	d.SetDraftRemark("1", "  duplicate claim\n")
	d.ToggleSelection("1")

	got, err := d.Reject(context.Background(), testSession(), "1")
	if err != nil {
		t.Fatalf("Reject がエラーを返した: %v", err)
	}
	if got.Status != model.ClaimStatusRejected {
		t.Errorf("status = %s, want Rejected", got.Status)
	}
	// 前後の空白のみ除去して送信される
	if calls := s.reviewCalls(); len(calls) != 1 || calls[0].Remarks != "duplicate claim" {
		t.Errorf("calls = %+v", calls)
	}
	if len(d.Snapshot().Selected) != 0 {
		t.Error("対象外になった請求は選択から外れるべき")
	}
}

func TestClaimDesk_Approve_StoreFailureKeepsState(t *testing.T) {
	var buf bytes.Buffer
	s := &mockClaimStore{
		fetchFunc: staticClaims(pendingClaim("1", "500")),
		approveFunc: func(context.Context, *model.Session, model.RecordID, string) (*model.Claim, error) {
			return nil, &store.Error{Op: store.OpApproveClaim, StatusCode: 500, Err: errors.New("boom")}
		},
	}
	rec := &mockRecorder{}
	opts := newTestOptions(&buf)
	opts.Recorder = rec
	d := NewClaimDesk(s, opts)
	d.Refresh(context.Background(), testSession())
	d.SetDraftRemark("1", "ok")

	_, err := d.Approve(context.Background(), testSession(), "1")
	if store.StatusCode(err) != 500 {
		t.Fatalf("err = %v, want store error 500", err)
	}
	if c := findClaim(t, d, "1"); c.Status != model.ClaimStatusPending || c.Remarks != "ok" {
		t.Errorf("claim = %+v, want 変更なし", c)
	}
	if len(rec.entries) != 1 || rec.entries[0].Outcome != model.OutcomeFailed || rec.entries[0].StatusCode != 500 {
		t.Errorf("監査ログ = %+v", rec.entries)
	}
}

func TestClaimDesk_Approve_NotActionable(t *testing.T) {
	var buf bytes.Buffer
	locked := pendingClaim("2", "10")
	locked.CanModify = boolPtr(false)
	approved := pendingClaim("3", "10")
	approved.Status = model.ClaimStatusApproved

	s := &mockClaimStore{fetchFunc: staticClaims(locked, approved)}
	d := loadedClaimDesk(t, s, &buf)

	for _, id := range []model.RecordID{"2", "3"} {
		_, err := d.Approve(context.Background(), testSession(), id)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeClaimNotActionable {
			t.Errorf("Approve(%s) err = %v, want CLAIM_NOT_ACTIONABLE", id, err)
		}
		if err := d.SetDraftRemark(id, "x"); err == nil {
			t.Errorf("SetDraftRemark(%s) は対象外の請求でエラーを返すべき", id)
		}
	}

	_, err := d.Approve(context.Background(), testSession(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeClaimNotFound {
		t.Errorf("err = %v, want CLAIM_NOT_FOUND", err)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestClaimDesk_ToggleSelection_IneligibleIsNoop(t *testing.T) {
	var buf bytes.Buffer
	locked := pendingClaim("locked", "1")
	locked.CanModify = boolPtr(false)
	done := pendingClaim("done", "1")
	done.Status = model.ClaimStatusRejected

	d := loadedClaimDesk(t, &mockClaimStore{fetchFunc: staticClaims(locked, done, pendingClaim("ok", "1"))}, &buf)

	for _, id := range []model.RecordID{"locked", "done", "unknown"} {
		if d.ToggleSelection(id) {
			t.Errorf("ToggleSelection(%s) は対象外のため選択されてはならない", id)
		}
	}
	if len(d.Snapshot().Selected) != 0 {
		t.Errorf("Selected = %v, want empty", d.Snapshot().Selected)
	}
}

// canModifyを含まない請求はサーバーが操作を許可していないものとして扱う
func TestClaimDesk_MissingCanModifyIsNotDispatched(t *testing.T) {
	var buf bytes.Buffer
	var unflagged model.Claim
	if err := json.Unmarshal([]byte(`{"id":1,"status":"Pending","amount":"500","remarks":""}`), &unflagged); err != nil {
		t.Fatalf("請求のデコードに失敗: %v", err)
	}
	if unflagged.CanModify != nil {
		t.Fatalf("CanModify = %v, want nil", *unflagged.CanModify)
	}

	s := &mockClaimStore{fetchFunc: staticClaims(unflagged, pendingClaim("2", "300"))}
	d := loadedClaimDesk(t, s, &buf)

	if d.ToggleSelection("1") {
		t.Error("canModify未指定の請求は選択されてはならない")
	}
	if err := d.SetDraftRemark("1", "ok"); err == nil {
		t.Error("canModify未指定の請求への下書きはエラーになるべき")
	}
	if n := d.SelectAll(); n != 1 {
		t.Errorf("SelectAll = %d, want 1", n)
	}
	d.SetDraftRemark("2", "ok")

	report := d.BulkApprove(context.Background(), testSession())

	want := []reviewCall{{Action: model.ClaimActionApprove, ID: "2", Remarks: "ok"}}
	if diff := cmp.Diff(want, s.reviewCalls()); diff != "" {
		t.Errorf("送信されたリクエスト (-want +got):\n%s", diff)
	}
	if report.Dispatched != 1 {
		t.Errorf("Dispatched = %d, want 1", report.Dispatched)
	}
	if c := findClaim(t, d, "1"); c.Status != model.ClaimStatusPending {
		t.Errorf("claim 1 status = %s, want Pending", c.Status)
	}
}

// 山括弧を含む備考も書き換えずにストアへ送信する
func TestClaimDesk_RemarksWithAngleBracketsAreSentVerbatim(t *testing.T) {
	const remark = "approved per <clause 4> limit"

	t.Run("一括承認", func(t *testing.T) {
		var buf bytes.Buffer
		s := &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "500"))}
		d := loadedClaimDesk(t, s, &buf)
		d.SetDraftRemark("1", "  "+remark+"  ")
		d.ToggleSelection("1")

		report := d.BulkApprove(context.Background(), testSession())

		want := []reviewCall{{Action: model.ClaimActionApprove, ID: "1", Remarks: remark}}
		if diff := cmp.Diff(want, s.reviewCalls()); diff != "" {
			t.Errorf("送信されたリクエスト (-want +got):\n%s", diff)
		}
		if len(report.SkippedInvalid) != 0 {
			t.Errorf("SkippedInvalid = %v, want empty", report.SkippedInvalid)
		}
		if c := findClaim(t, d, "1"); c.Remarks != remark {
			t.Errorf("Remarks = %q, want %q", c.Remarks, remark)
		}
	})

	t.Run("単体却下", func(t *testing.T) {
		var buf bytes.Buffer
		s := &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "500"))}
		d := loadedClaimDesk(t, s, &buf)
		d.SetDraftRemark("1", "<tag>")

		if _, err := d.Reject(context.Background(), testSession(), "1"); err != nil {
			t.Fatalf("Reject がエラーを返した: %v", err)
		}
		want := []reviewCall{{Action: model.ClaimActionReject, ID: "1", Remarks: "<tag>"}}
		if diff := cmp.Diff(want, s.reviewCalls()); diff != "" {
			t.Errorf("送信されたリクエスト (-want +got):\n%s", diff)
		}
	})
}

func TestClaimDesk_SelectAll_FullCycle(t *testing.T) {
	var buf bytes.Buffer
	approved := pendingClaim("3", "1")
	approved.Status = model.ClaimStatusApproved
	d := loadedClaimDesk(t, &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "1"), pendingClaim("2", "1"), approved)}, &buf)

	if n := d.SelectAll(); n != 2 {
		t.Fatalf("1回目 SelectAll = %d, want 2", n)
	}
	if diff := cmp.Diff([]model.RecordID{"1", "2"}, d.Snapshot().Selected); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if n := d.SelectAll(); n != 0 {
		t.Fatalf("2回目 SelectAll = %d, want 0", n)
	}
}

func TestClaimDesk_SelectAll_OnlyVisible(t *testing.T) {
	var buf bytes.Buffer
	a := pendingClaim("1", "1")
	a.EmployeeName = "Asha"
	b := pendingClaim("2", "1")
	b.EmployeeName = "Ravi"
	d := loadedClaimDesk(t, &mockClaimStore{fetchFunc: staticClaims(a, b)}, &buf)

	d.SetSearchTerm("asha")
	d.SelectAll()

	if diff := cmp.Diff([]model.RecordID{"1"}, d.Snapshot().Selected); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestClaimDesk_Refresh_LastIssuedWins(t *testing.T) {
	var buf bytes.Buffer
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s := &mockClaimStore{
		fetchFunc: func(ctx context.Context, sess *model.Session) ([]model.Claim, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return []model.Claim{pendingClaim("old", "1")}, nil
			}
			return []model.Claim{pendingClaim("new", "1")}, nil
		},
	}
	d := NewClaimDesk(s, newTestOptions(&buf))

	type result struct {
		applied bool
		err     error
	}
	first := make(chan result, 1)
	go func() {
		applied, err := d.Refresh(context.Background(), testSession())
		first <- result{applied, err}
	}()

	<-started
	applied, err := d.Refresh(context.Background(), testSession())
	if err != nil || !applied {
		t.Fatalf("2回目の Refresh = (%v, %v), want (true, nil)", applied, err)
	}
	close(release)

	r := <-first
	if r.err != nil || r.applied {
		t.Errorf("1回目の Refresh = (%v, %v), want (false, nil)", r.applied, r.err)
	}

	list := d.DisplayList()
	if len(list) != 1 || list[0].ID != "new" {
		t.Errorf("DisplayList = %+v, want [new]", list)
	}
}

func TestClaimDesk_Refresh_ErrorKeepsCache(t *testing.T) {
	var buf bytes.Buffer
	fail := false
	s := &mockClaimStore{
		fetchFunc: func(ctx context.Context, sess *model.Session) ([]model.Claim, error) {
			if fail {
				return nil, &store.Error{Op: store.OpFetchClaims, StatusCode: 503, Err: errors.New("unavailable")}
			}
			return []model.Claim{pendingClaim("1", "10")}, nil
		},
	}
	d := loadedClaimDesk(t, s, &buf)

	fail = true
	if _, err := d.Refresh(context.Background(), testSession()); err == nil {
		t.Fatal("取得失敗時はエラーを返すべき")
	}
	if got := d.Snapshot(); got.Total != 1 || !got.Loaded {
		t.Errorf("Snapshot = %+v, want 直前のキャッシュ", got)
	}
}

func TestClaimDesk_Refresh_InvalidatesDraftsAndSelection(t *testing.T) {
	var buf bytes.Buffer
	round := 0
	s := &mockClaimStore{
		fetchFunc: func(ctx context.Context, sess *model.Session) ([]model.Claim, error) {
			round++
			if round == 1 {
				return []model.Claim{pendingClaim("keep", "1"), pendingClaim("approved", "1"), pendingClaim("gone", "1")}, nil
			}
			approved := pendingClaim("approved", "1")
			approved.Status = model.ClaimStatusApproved
			return []model.Claim{pendingClaim("keep", "1"), approved}, nil
		},
	}
	d := loadedClaimDesk(t, s, &buf)
	for _, id := range []model.RecordID{"keep", "approved", "gone"} {
		d.SetDraftRemark(id, "draft "+string(id))
		d.ToggleSelection(id)
	}

	if _, err := d.Refresh(context.Background(), testSession()); err != nil {
		t.Fatalf("Refresh がエラーを返した: %v", err)
	}

	if c := findClaim(t, d, "keep"); c.Remarks != "draft keep" {
		t.Errorf("審査待ちのままの請求の下書きは維持されるべき: %q", c.Remarks)
	}
	if c := findClaim(t, d, "approved"); c.Remarks != "" {
		t.Errorf("審査済みになった請求の下書きは破棄されるべき: %q", c.Remarks)
	}
	if diff := cmp.Diff([]model.RecordID{"keep"}, d.Snapshot().Selected); diff != "" {
		t.Errorf("Selected (-want +got):\n%s", diff)
	}
}

func TestClaimDesk_StatisticsIgnoreView(t *testing.T) {
	var buf bytes.Buffer
	approved := pendingClaim("2", "300")
	approved.Status = model.ClaimStatusApproved
	d := loadedClaimDesk(t, &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "500"), approved)}, &buf)

	before := d.Statistics()
	d.SetSearchTerm("nothing matches")
	if err := d.SetStatusFilter("Rejected"); err != nil {
		t.Fatalf("SetStatusFilter がエラーを返した: %v", err)
	}
	d.SetSort(model.SortKeyAmount)

	if diff := cmp.Diff(before, d.Statistics()); diff != "" {
		t.Errorf("(-before +after):\n%s", diff)
	}
	if before.TotalAmount != 800 || before.PendingAmount != 500 {
		t.Errorf("Statistics = %+v", before)
	}
	if snap := d.Snapshot(); len(snap.Claims) != 0 || snap.Total != 2 {
		t.Errorf("Snapshot visible=%d total=%d, want 0/2", len(snap.Claims), snap.Total)
	}
}

func TestClaimDesk_SetSort_TogglesDirection(t *testing.T) {
	var buf bytes.Buffer
	d := NewClaimDesk(&mockClaimStore{}, newTestOptions(&buf))

	first, _ := d.SetSort(model.SortKeyAmount)
	second, _ := d.SetSort(model.SortKeyAmount)
	third, _ := d.SetSort(model.SortKeyClaimDate)

	if first.Direction != model.SortAsc || second.Direction != model.SortDesc || third.Direction != model.SortAsc {
		t.Errorf("directions = %s, %s, %s", first.Direction, second.Direction, third.Direction)
	}
	if _, err := d.SetSort("password"); err == nil {
		t.Error("未定義のソートキーはエラーを返すべき")
	}
	if err := d.SetStatusFilter("Archived"); err == nil {
		t.Error("未定義のステータスフィルタはエラーを返すべき")
	}
}

func TestClaimDesk_ResetView(t *testing.T) {
	var buf bytes.Buffer
	d := loadedClaimDesk(t, &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "1"))}, &buf)
	d.SetSearchTerm("x")
	d.SetStatusFilter("Pending")
	d.SetSort(model.SortKeyAmount)
	d.ToggleSelection("1")

	d.ResetView()

	snap := d.Snapshot()
	if snap.View.SearchTerm != "" || snap.View.StatusFilter != model.StatusFilterAll {
		t.Errorf("View = %+v", snap.View)
	}
	if snap.View.Sort.Key != model.SortKeyAmount {
		t.Error("ソート指定は維持されるべき")
	}
	if len(snap.Selected) != 0 {
		t.Error("選択は解除されるべき")
	}
}

func TestClaimDesk_BulkRecordsAuditEntries(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockRecorder{err: errors.New("db down")}
	opts := newTestOptions(&buf)
	opts.Recorder = rec
	s := &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "1"), pendingClaim("2", "1"))}
	d := NewClaimDesk(s, opts)
	d.Refresh(context.Background(), testSession())
	d.SetDraftRemark("1", "ok")
	d.ToggleSelection("1")
	d.ToggleSelection("2")

	report := d.BulkApprove(context.Background(), testSession())

	if len(rec.entries) != 2 {
		t.Fatalf("監査ログ件数 = %d, want 2", len(rec.entries))
	}
	outcomes := map[model.RecordID]model.BulkOutcome{}
	for _, e := range rec.entries {
		outcomes[e.RecordID] = e.Outcome
		if e.BatchID != report.BatchID || e.UserID != "7" || e.RecordKind != "claim" {
			t.Errorf("entry = %+v", e)
		}
	}
	if outcomes["1"] != model.OutcomeSucceeded || outcomes["2"] != model.OutcomeSkippedInvalid {
		t.Errorf("outcomes = %v", outcomes)
	}
	// 監査ログの保存失敗は結果に影響しない
	if len(report.Succeeded) != 1 {
		t.Errorf("Succeeded = %v", report.Succeeded)
	}
	if !strings.Contains(buf.String(), "監査ログの保存に失敗しました") {
		t.Error("監査ログの保存失敗がログに記録されていない")
	}
}

func TestClaimDesk_EmptySelectionDispatchesNothing(t *testing.T) {
	var buf bytes.Buffer
	s := &mockClaimStore{fetchFunc: staticClaims(pendingClaim("1", "1"))}
	d := loadedClaimDesk(t, s, &buf)

	report := d.BulkApprove(context.Background(), testSession())

	if report.Dispatched != 0 || len(s.reviewCalls()) != 0 {
		t.Errorf("report = %+v, calls = %v", report, s.reviewCalls())
	}
}
