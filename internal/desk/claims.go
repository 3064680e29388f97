package desk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/reconcile"
	"github.com/insurai/claimdesk/internal/selection"
	"github.com/insurai/claimdesk/internal/store"
	"github.com/insurai/claimdesk/internal/worker/dispatch"
)

// ClaimSnapshot は請求デスクのある時点の表示状態。
type ClaimSnapshot struct {
	Claims     []model.Claim
	Statistics model.Statistics
	View       model.ClaimView
	Selected   []model.RecordID
	// Eligible は表示中の請求のうち審査アクションの対象になれる件数。
	Eligible  int
	Total     int
	Loaded    bool
	FetchedAt time.Time
}

// ClaimDesk は1セッション分の請求一覧の作業状態。
type ClaimDesk struct {
	store ClaimStore
	opts  Options

	mu       sync.Mutex
	raw      []model.Claim
	index    map[model.RecordID]int
	drafts   map[model.RecordID]model.ClaimDraft
	view     model.ClaimView
	selected *selection.Set

	issuedSeq  uint64
	appliedSeq uint64
	loaded     bool
	fetchedAt  time.Time
}

// NewClaimDesk は空のClaimDeskを生成する。
func NewClaimDesk(s ClaimStore, opts Options) *ClaimDesk {
	return &ClaimDesk{
		store:    s,
		opts:     opts.withDefaults(),
		index:    make(map[model.RecordID]int),
		drafts:   make(map[model.RecordID]model.ClaimDraft),
		view:     model.DefaultClaimView(),
		selected: selection.New(),
	}
}

// Refresh はストアから請求一覧を取得してキャッシュを置き換える。
// 後から発行された取得が先に適用されていた場合、この取得結果は破棄されappliedはfalseになる。
// 取得に失敗した場合、キャッシュは直前の状態のまま維持される。
func (d *ClaimDesk) Refresh(ctx context.Context, sess *model.Session) (applied bool, err error) {
	d.mu.Lock()
	d.issuedSeq++
	seq := d.issuedSeq
	d.mu.Unlock()

	claims, err := d.store.FetchClaims(ctx, sess)
	if err != nil {
		return false, fmt.Errorf("請求一覧の取得に失敗しました: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if seq <= d.appliedSeq {
		d.opts.Metrics.RecordStaleFetchDiscarded(kindClaim)
		d.opts.Logger.Info("古い請求一覧の取得結果を破棄しました",
			slog.Uint64("seq", seq),
			slog.Uint64("applied_seq", d.appliedSeq),
		)
		return false, nil
	}
	d.appliedSeq = seq
	d.replaceRaw(claims)
	d.loaded = true
	d.fetchedAt = time.Now()
	return true, nil
}

// replaceRaw はキャッシュを置き換え、消えた・審査待ちでなくなった請求の下書きを破棄し、
// 選択を対象レコードのみに絞り込む。呼び出し側でロックを保持していること。
func (d *ClaimDesk) replaceRaw(claims []model.Claim) {
	raw := make([]model.Claim, 0, len(claims))
	index := make(map[model.RecordID]int, len(claims))
	for _, c := range claims {
		if _, dup := index[c.ID]; dup {
			d.opts.Logger.Warn("重複した請求IDを無視しました", slog.String("claim_id", c.ID.String()))
			continue
		}
		index[c.ID] = len(raw)
		raw = append(raw, c.Clone())
	}
	d.raw = raw
	d.index = index

	for id := range d.drafts {
		c, ok := d.lookup(id)
		if !ok || c.Status != model.ClaimStatusPending {
			delete(d.drafts, id)
		}
	}
	d.pruneSelection()
}

func (d *ClaimDesk) lookup(id model.RecordID) (model.Claim, bool) {
	i, ok := d.index[id]
	if !ok {
		return model.Claim{}, false
	}
	return d.raw[i], true
}

func (d *ClaimDesk) pruneSelection() {
	d.selected.Retain(func(id model.RecordID) bool {
		c, ok := d.lookup(id)
		return ok && c.Actionable()
	})
}

// currentRemarks は下書きを重ねた現在の備考を返す。
func (d *ClaimDesk) currentRemarks(c model.Claim) string {
	if draft, ok := d.drafts[c.ID]; ok {
		return draft.Remarks
	}
	return c.Remarks
}

// Snapshot は表示用一覧、集計値、表示パラメータ、選択状態を返す。
func (d *ClaimDesk) Snapshot() ClaimSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	visible := reconcile.ProjectClaims(d.raw, d.drafts, d.view)
	eligible := 0
	for _, c := range visible {
		if c.Actionable() {
			eligible++
		}
	}
	return ClaimSnapshot{
		Claims:     visible,
		Statistics: reconcile.ClaimStatistics(d.raw),
		View:       d.view,
		Selected:   d.selected.IDs(),
		Eligible:   eligible,
		Total:      len(d.raw),
		Loaded:     d.loaded,
		FetchedAt:  d.fetchedAt,
	}
}

// DisplayList は検索・絞り込み・ソートを適用した表示用一覧を返す。
func (d *ClaimDesk) DisplayList() []model.Claim {
	d.mu.Lock()
	defer d.mu.Unlock()
	return reconcile.ProjectClaims(d.raw, d.drafts, d.view)
}

// Statistics はフィルタ適用前の一覧全体の集計値を返す。
func (d *ClaimDesk) Statistics() model.Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return reconcile.ClaimStatistics(d.raw)
}

// Claim は下書きを重ねた請求1件を返す。
func (d *ClaimDesk) Claim(id model.RecordID) (model.Claim, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(id)
	if !ok {
		return model.Claim{}, model.NewClaimNotFoundError(id)
	}
	return reconcile.MergeDrafts([]model.Claim{c}, d.drafts)[0], nil
}

// SetSearchTerm は検索語を設定する。
func (d *ClaimDesk) SetSearchTerm(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.SearchTerm = term
}

// SetStatusFilter はステータスフィルタを設定する。空文字列は"All"として扱う。
func (d *ClaimDesk) SetStatusFilter(filter string) error {
	return d.UpdateView(ViewUpdate{Filter: &filter})
}

// SetSort は列見出しのクリックに相当するソート指定を行う。
// 同じキーを続けて指定すると昇順と降順が切り替わる。
func (d *ClaimDesk) SetSort(key model.SortKey) (model.SortConfig, error) {
	if !reconcile.ValidClaimSortKey(key) {
		return model.SortConfig{}, model.NewInvalidSortKeyError(string(key))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Sort = d.view.Sort.NextSort(key)
	return d.view.Sort, nil
}

// SetSortDirection はソートキーと方向を直接指定する。
func (d *ClaimDesk) SetSortDirection(key model.SortKey, dir model.SortDirection) error {
	return d.UpdateView(ViewUpdate{SortKey: &key, SortDirection: dir})
}

// UpdateView は表示パラメータをまとめて更新する。
// すべての指定を検証してから反映するため、エラー時は表示パラメータを変更しない。
func (d *ClaimDesk) UpdateView(u ViewUpdate) error {
	var filter string
	if u.Filter != nil {
		filter = *u.Filter
		if filter == "" {
			filter = model.StatusFilterAll
		}
		if !reconcile.ValidClaimStatusFilter(filter) {
			return model.NewInvalidFilterError(filter)
		}
	}
	sortCfg, err := u.resolveSort(reconcile.ValidClaimSortKey)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if u.Filter != nil {
		d.view.StatusFilter = filter
	}
	if sortCfg != nil {
		d.view.Sort = *sortCfg
	}
	if u.SearchTerm != nil {
		d.view.SearchTerm = *u.SearchTerm
	}
	return nil
}

// ResetView は検索語とステータスフィルタを初期値に戻し、選択を解除する。
// ソート指定は維持する。
func (d *ClaimDesk) ResetView() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.SearchTerm = ""
	d.view.StatusFilter = model.StatusFilterAll
	d.selected.Clear()
}

// ToggleSelection は請求の選択状態を反転し、反転後に選択されているかを返す。
// 存在しない、または審査アクションの対象外の請求に対しては何もしない。
func (d *ClaimDesk) ToggleSelection(id model.RecordID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(id)
	if !ok || !c.Actionable() {
		return false
	}
	return d.selected.Toggle(id)
}

// SelectAll は表示中の対象請求の全選択・全解除を切り替え、変更後の選択数を返す。
func (d *ClaimDesk) SelectAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	visible := reconcile.ProjectClaims(d.raw, d.drafts, d.view)
	eligible := make([]model.RecordID, 0, len(visible))
	for _, c := range visible {
		if c.Actionable() {
			eligible = append(eligible, c.ID)
		}
	}
	return d.selected.ToggleAll(eligible)
}

// ClearSelection は選択を解除する。
func (d *ClaimDesk) ClearSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected.Clear()
}

// SetDraftRemark は請求の備考の下書きを設定する。下書きはアクション送信まで保存されない。
func (d *ClaimDesk) SetDraftRemark(id model.RecordID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.lookup(id)
	if !ok {
		return model.NewClaimNotFoundError(id)
	}
	if !c.Actionable() {
		return model.NewClaimNotActionableError(id, c.Status)
	}
	d.drafts[id] = model.ClaimDraft{Remarks: text}
	return nil
}

// Approve は請求1件を承認する。
func (d *ClaimDesk) Approve(ctx context.Context, sess *model.Session, id model.RecordID) (model.Claim, error) {
	return d.review(ctx, sess, id, model.ClaimActionApprove)
}

// Reject は請求1件を却下する。
func (d *ClaimDesk) Reject(ctx context.Context, sess *model.Session, id model.RecordID) (model.Claim, error) {
	return d.review(ctx, sess, id, model.ClaimActionReject)
}

// review は単体の承認・却下を行う。備考が空の場合はストアに送信せず検証エラーを返す。
// ストアへの送信が失敗した場合、請求はキャッシュ上の直前の状態のまま維持される。
func (d *ClaimDesk) review(ctx context.Context, sess *model.Session, id model.RecordID, action model.ClaimAction) (model.Claim, error) {
	d.mu.Lock()
	c, ok := d.lookup(id)
	if !ok {
		d.mu.Unlock()
		return model.Claim{}, model.NewClaimNotFoundError(id)
	}
	if !c.Actionable() {
		d.mu.Unlock()
		return model.Claim{}, model.NewClaimNotActionableError(id, c.Status)
	}
	remarks := strings.TrimSpace(d.currentRemarks(c))
	d.mu.Unlock()

	if remarks == "" {
		return model.Claim{}, model.NewRemarkRequiredError(action)
	}

	report := model.NewBulkReport(d.opts.NewID(), string(action))
	report.Dispatched = 1

	result, err := d.send(ctx, sess, action, id, remarks)
	if err != nil {
		report.Failed = append(report.Failed, d.failure(id, action, err))
		d.opts.record(ctx, sess, report, kindClaim)
		return model.Claim{}, err
	}

	d.mu.Lock()
	updated, ok := d.applyReview(id, action, remarks, result)
	d.pruneSelection()
	d.mu.Unlock()
	if !ok {
		updated = model.Claim{ID: id, Status: action.ResultStatus(), Remarks: remarks, Documents: []string{}}
	}

	report.Succeeded = append(report.Succeeded, id)
	d.opts.record(ctx, sess, report, kindClaim)
	return updated, nil
}

// BulkApprove は選択中の請求を一括承認する。
func (d *ClaimDesk) BulkApprove(ctx context.Context, sess *model.Session) *model.BulkReport {
	return d.bulkReview(ctx, sess, model.ClaimActionApprove)
}

// BulkReject は選択中の請求を一括却下する。
func (d *ClaimDesk) BulkReject(ctx context.Context, sess *model.Session) *model.BulkReport {
	return d.bulkReview(ctx, sess, model.ClaimActionReject)
}

type reviewItem struct {
	id      model.RecordID
	remarks string
}

// bulkReview は選択中の各請求について現在の状態を確認し、対象となる請求ごとに1件ずつ並列に送信する。
//   - 既に対象外になった請求は送信せず SkippedStale に記録する
//   - 備考が空の請求は送信せず SkippedInvalid に記録する
//   - 各請求の成否は独立しており、失敗した請求はキャッシュ上の状態を変えない
//
// 全件の送信が完了した後に選択を解除する。
func (d *ClaimDesk) bulkReview(ctx context.Context, sess *model.Session, action model.ClaimAction) *model.BulkReport {
	report := model.NewBulkReport(d.opts.NewID(), string(action))

	d.mu.Lock()
	var items []reviewItem
	for _, id := range d.selected.IDs() {
		c, ok := d.lookup(id)
		if !ok || !c.Actionable() {
			report.SkippedStale = append(report.SkippedStale, id)
			continue
		}
		remarks := strings.TrimSpace(d.currentRemarks(c))
		if remarks == "" {
			report.SkippedInvalid = append(report.SkippedInvalid, id)
			continue
		}
		items = append(items, reviewItem{id: id, remarks: remarks})
	}
	d.mu.Unlock()

	report.Dispatched = len(items)
	if len(report.SkippedInvalid) > 0 {
		d.opts.Logger.Info("備考が未入力の請求を送信対象から除外しました",
			slog.String("batch_id", report.BatchID),
			slog.Int("count", len(report.SkippedInvalid)),
		)
	}

	tasks := make([]dispatch.Task[*model.Claim], len(items))
	for i, item := range items {
		tasks[i] = dispatch.Task[*model.Claim]{
			Key: item.id.String(),
			Run: func(ctx context.Context) (*model.Claim, error) {
				return d.send(ctx, sess, action, item.id, item.remarks)
			},
		}
	}
	results := dispatch.Run(ctx, d.opts.Pool, tasks)

	d.mu.Lock()
	for i, res := range results {
		item := items[i]
		if res.Err != nil {
			report.Failed = append(report.Failed, d.failure(item.id, action, res.Err))
			continue
		}
		d.applyReview(item.id, action, item.remarks, res.Value)
		report.Succeeded = append(report.Succeeded, item.id)
	}
	d.selected.Clear()
	d.mu.Unlock()

	for _, f := range report.Failed {
		report.Notices = append(report.Notices, f.Message)
	}

	d.opts.record(ctx, sess, report, kindClaim)
	return report
}

func (d *ClaimDesk) send(ctx context.Context, sess *model.Session, action model.ClaimAction, id model.RecordID, remarks string) (*model.Claim, error) {
	if action == model.ClaimActionReject {
		return d.store.RejectClaim(ctx, sess, id, remarks)
	}
	return d.store.ApproveClaim(ctx, sess, id, remarks)
}

// failure は送信失敗をログに記録し、ユーザー向けのメッセージを組み立てる。
func (d *ClaimDesk) failure(id model.RecordID, action model.ClaimAction, err error) model.BulkFailure {
	verb := "承認"
	if action == model.ClaimActionReject {
		verb = "却下"
	}
	status := store.StatusCode(err)
	d.opts.Logger.Warn("請求のアクション送信に失敗しました",
		slog.String("record_id", id.String()),
		slog.String("action", string(action)),
		slog.Int("status_code", status),
		slog.String("error", err.Error()),
	)
	return model.BulkFailure{
		ID:         id,
		StatusCode: status,
		Message:    fmt.Sprintf("請求 %s の%sに失敗しました: %s", id, verb, store.UserMessage(err)),
	}
}

// applyReview はストアが確定したアクション結果をキャッシュに反映する。
// ストアの応答にステータスが含まれない場合はアクションが示すステータスを採用する。
// 反映後はそれ以前に発行された取得結果を古いものとして扱う。呼び出し側でロックを保持していること。
func (d *ClaimDesk) applyReview(id model.RecordID, action model.ClaimAction, remarks string, result *model.Claim) (model.Claim, bool) {
	i, ok := d.index[id]
	if !ok {
		// 送信中の再取得で一覧から消えた
		return model.Claim{}, false
	}

	updated := d.raw[i].Clone()
	updated.Status = action.ResultStatus()
	updated.Remarks = remarks
	if result != nil {
		if result.Status != "" {
			updated.Status = result.Status
		}
		if result.Remarks != "" {
			updated.Remarks = result.Remarks
		}
		if result.CanModify != nil {
			v := *result.CanModify
			updated.CanModify = &v
		}
	}
	d.raw[i] = updated
	delete(d.drafts, id)
	d.appliedSeq = d.issuedSeq
	return updated.Clone(), true
}
