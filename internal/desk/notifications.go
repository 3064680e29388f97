package desk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/reconcile"
	"github.com/insurai/claimdesk/internal/selection"
	"github.com/insurai/claimdesk/internal/store"
	"github.com/insurai/claimdesk/internal/worker/dispatch"
)

// actionMarkRead は既読化アクションの名前。監査ログとメトリクスのラベルに使用する。
const actionMarkRead = "mark_read"

// NotificationSnapshot は通知デスクのある時点の表示状態。
type NotificationSnapshot struct {
	Notifications []model.Notification
	Statistics    model.Statistics
	View          model.NotificationView
	Selected      []model.RecordID
	Eligible      int
	Total         int
	Loaded        bool
	FetchedAt     time.Time
}

// NotificationDesk は1セッション分の通知一覧の作業状態。
type NotificationDesk struct {
	store NotificationStore
	opts  Options

	mu       sync.Mutex
	raw      []model.Notification
	index    map[model.RecordID]int
	view     model.NotificationView
	selected *selection.Set

	issuedSeq  uint64
	appliedSeq uint64
	loaded     bool
	fetchedAt  time.Time
}

// NewNotificationDesk は空のNotificationDeskを生成する。
func NewNotificationDesk(s NotificationStore, opts Options) *NotificationDesk {
	return &NotificationDesk{
		store:    s,
		opts:     opts.withDefaults(),
		index:    make(map[model.RecordID]int),
		view:     model.DefaultNotificationView(),
		selected: selection.New(),
	}
}

// Refresh はストアから通知一覧を取得してキャッシュを置き換える。
// タイトルと本文はHTMLを除去したテキストとして保持する。
func (d *NotificationDesk) Refresh(ctx context.Context, sess *model.Session) (applied bool, err error) {
	d.mu.Lock()
	d.issuedSeq++
	seq := d.issuedSeq
	d.mu.Unlock()

	notifications, err := d.store.FetchNotifications(ctx, sess)
	if err != nil {
		return false, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if seq <= d.appliedSeq {
		d.opts.Metrics.RecordStaleFetchDiscarded(kindNotification)
		d.opts.Logger.Info("古い通知一覧の取得結果を破棄しました",
			slog.Uint64("seq", seq),
			slog.Uint64("applied_seq", d.appliedSeq),
		)
		return false, nil
	}
	d.appliedSeq = seq

	raw := make([]model.Notification, 0, len(notifications))
	index := make(map[model.RecordID]int, len(notifications))
	for _, n := range notifications {
		if _, dup := index[n.ID]; dup {
			d.opts.Logger.Warn("重複した通知IDを無視しました", slog.String("notification_id", n.ID.String()))
			continue
		}
		n.Title = d.opts.Sanitizer.Sanitize(n.Title)
		n.Message = d.opts.Sanitizer.Sanitize(n.Message)
		index[n.ID] = len(raw)
		raw = append(raw, n)
	}
	d.raw = raw
	d.index = index
	d.pruneSelection()
	d.loaded = true
	d.fetchedAt = time.Now()
	return true, nil
}

func (d *NotificationDesk) lookup(id model.RecordID) (model.Notification, bool) {
	i, ok := d.index[id]
	if !ok {
		return model.Notification{}, false
	}
	return d.raw[i], true
}

func (d *NotificationDesk) pruneSelection() {
	d.selected.Retain(func(id model.RecordID) bool {
		n, ok := d.lookup(id)
		return ok && n.Unread()
	})
}

// Snapshot は表示用一覧、集計値、表示パラメータ、選択状態を返す。
func (d *NotificationDesk) Snapshot() NotificationSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	visible := reconcile.ProjectNotifications(d.raw, d.view)
	eligible := 0
	for _, n := range visible {
		if n.Unread() {
			eligible++
		}
	}
	return NotificationSnapshot{
		Notifications: visible,
		Statistics:    reconcile.NotificationStatistics(d.raw),
		View:          d.view,
		Selected:      d.selected.IDs(),
		Eligible:      eligible,
		Total:         len(d.raw),
		Loaded:        d.loaded,
		FetchedAt:     d.fetchedAt,
	}
}

// DisplayList は絞り込みとソートを適用した表示用一覧を返す。
func (d *NotificationDesk) DisplayList() []model.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return reconcile.ProjectNotifications(d.raw, d.view)
}

// Statistics は一覧全体の未読・既読数を返す。
func (d *NotificationDesk) Statistics() model.Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return reconcile.NotificationStatistics(d.raw)
}

// SetSearchTerm は検索語を設定する。
func (d *NotificationDesk) SetSearchTerm(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.SearchTerm = term
}

// SetFilter は既読状態フィルタを設定する。空文字列は"all"として扱う。
func (d *NotificationDesk) SetFilter(filter model.NotificationFilter) error {
	f := string(filter)
	return d.UpdateView(ViewUpdate{Filter: &f})
}

// SetSort は同じキーの再指定で方向を切り替えるソート指定を行う。
func (d *NotificationDesk) SetSort(key model.SortKey) (model.SortConfig, error) {
	if !reconcile.ValidNotificationSortKey(key) {
		return model.SortConfig{}, model.NewInvalidSortKeyError(string(key))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.Sort = d.view.Sort.NextSort(key)
	return d.view.Sort, nil
}

// SetSortDirection はソートキーと方向を直接指定する。
func (d *NotificationDesk) SetSortDirection(key model.SortKey, dir model.SortDirection) error {
	return d.UpdateView(ViewUpdate{SortKey: &key, SortDirection: dir})
}

// UpdateView は表示パラメータをまとめて更新する。エラー時は何も変更しない。
func (d *NotificationDesk) UpdateView(u ViewUpdate) error {
	var filter model.NotificationFilter
	if u.Filter != nil {
		filter = model.NotificationFilter(*u.Filter)
		if filter == "" {
			filter = model.NotificationFilterAll
		}
		if !filter.Valid() {
			return model.NewInvalidFilterError(string(filter))
		}
	}
	sortCfg, err := u.resolveSort(reconcile.ValidNotificationSortKey)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if u.Filter != nil {
		d.view.Filter = filter
	}
	if sortCfg != nil {
		d.view.Sort = *sortCfg
	}
	if u.SearchTerm != nil {
		d.view.SearchTerm = *u.SearchTerm
	}
	return nil
}

// ResetView は検索語とフィルタを初期値に戻し、選択を解除する。
func (d *NotificationDesk) ResetView() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.SearchTerm = ""
	d.view.Filter = model.NotificationFilterAll
	d.selected.Clear()
}

// ToggleSelection は通知の選択状態を反転する。既読または存在しない通知に対しては何もしない。
func (d *NotificationDesk) ToggleSelection(id model.RecordID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.lookup(id)
	if !ok || !n.Unread() {
		return false
	}
	return d.selected.Toggle(id)
}

// SelectAll は表示中の未読通知の全選択・全解除を切り替え、変更後の選択数を返す。
func (d *NotificationDesk) SelectAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	visible := reconcile.ProjectNotifications(d.raw, d.view)
	eligible := make([]model.RecordID, 0, len(visible))
	for _, n := range visible {
		if n.Unread() {
			eligible = append(eligible, n.ID)
		}
	}
	return d.selected.ToggleAll(eligible)
}

// ClearSelection は選択を解除する。
func (d *NotificationDesk) ClearSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected.Clear()
}

// MarkRead は通知1件を既読にする。既読済みの通知はストアに送信せずそのまま返す。
func (d *NotificationDesk) MarkRead(ctx context.Context, sess *model.Session, id model.RecordID) (model.Notification, error) {
	d.mu.Lock()
	n, ok := d.lookup(id)
	d.mu.Unlock()
	if !ok {
		return model.Notification{}, model.NewNotificationNotFoundError(id)
	}
	if !n.Unread() {
		return n, nil
	}

	report := model.NewBulkReport(d.opts.NewID(), actionMarkRead)
	report.Dispatched = 1

	if _, err := d.store.MarkNotificationRead(ctx, sess, id); err != nil {
		report.Failed = append(report.Failed, d.failure(id, err))
		d.opts.record(ctx, sess, report, kindNotification)
		return model.Notification{}, err
	}

	d.mu.Lock()
	updated, applied := d.applyRead(id)
	d.pruneSelection()
	d.mu.Unlock()
	if !applied {
		updated = n
		updated.ReadStatus = true
	}

	report.Succeeded = append(report.Succeeded, id)
	d.opts.record(ctx, sess, report, kindNotification)
	return updated, nil
}

// BulkMarkRead は選択中の未読通知を一括で既読にし、選択を解除する。
func (d *NotificationDesk) BulkMarkRead(ctx context.Context, sess *model.Session) *model.BulkReport {
	d.mu.Lock()
	ids := d.selected.IDs()
	d.mu.Unlock()
	return d.markMany(ctx, sess, ids, true)
}

// MarkAllRead は選択に関係なく一覧中のすべての未読通知を既読にする。
func (d *NotificationDesk) MarkAllRead(ctx context.Context, sess *model.Session) *model.BulkReport {
	d.mu.Lock()
	ids := make([]model.RecordID, 0, len(d.raw))
	for _, n := range d.raw {
		if n.Unread() {
			ids = append(ids, n.ID)
		}
	}
	d.mu.Unlock()
	return d.markMany(ctx, sess, ids, false)
}

// markMany は各通知の現在の状態を確認し、未読の通知ごとに1件ずつ並列に既読化を送信する。
// clearSelectionがtrueの場合は送信完了後に選択を解除し、falseの場合は既読になった通知だけを選択から外す。
func (d *NotificationDesk) markMany(ctx context.Context, sess *model.Session, ids []model.RecordID, clearSelection bool) *model.BulkReport {
	report := model.NewBulkReport(d.opts.NewID(), actionMarkRead)

	d.mu.Lock()
	var targets []model.RecordID
	for _, id := range ids {
		n, ok := d.lookup(id)
		if !ok || !n.Unread() {
			report.SkippedStale = append(report.SkippedStale, id)
			continue
		}
		targets = append(targets, id)
	}
	d.mu.Unlock()

	report.Dispatched = len(targets)

	tasks := make([]dispatch.Task[*model.Notification], len(targets))
	for i, id := range targets {
		tasks[i] = dispatch.Task[*model.Notification]{
			Key: id.String(),
			Run: func(ctx context.Context) (*model.Notification, error) {
				return d.store.MarkNotificationRead(ctx, sess, id)
			},
		}
	}
	results := dispatch.Run(ctx, d.opts.Pool, tasks)

	d.mu.Lock()
	for i, res := range results {
		id := targets[i]
		if res.Err != nil {
			report.Failed = append(report.Failed, d.failure(id, res.Err))
			continue
		}
		d.applyRead(id)
		report.Succeeded = append(report.Succeeded, id)
	}
	if clearSelection {
		d.selected.Clear()
	} else {
		d.pruneSelection()
	}
	d.mu.Unlock()

	for _, f := range report.Failed {
		report.Notices = append(report.Notices, f.Message)
	}

	d.opts.record(ctx, sess, report, kindNotification)
	return report
}

func (d *NotificationDesk) failure(id model.RecordID, err error) model.BulkFailure {
	status := store.StatusCode(err)
	d.opts.Logger.Warn("通知の既読化に失敗しました",
		slog.String("record_id", id.String()),
		slog.String("action", actionMarkRead),
		slog.Int("status_code", status),
		slog.String("error", err.Error()),
	)
	return model.BulkFailure{
		ID:         id,
		StatusCode: status,
		Message:    fmt.Sprintf("通知 %s の既読化に失敗しました: %s", id, store.UserMessage(err)),
	}
}

// applyRead はストアが受理した既読化をキャッシュに反映する。呼び出し側でロックを保持していること。
// 応答ボディの有無や内容に関係なく、リクエストの成功をもって既読とする。
func (d *NotificationDesk) applyRead(id model.RecordID) (model.Notification, bool) {
	i, ok := d.index[id]
	if !ok {
		return model.Notification{}, false
	}
	updated := d.raw[i]
	updated.ReadStatus = true
	d.raw[i] = updated
	d.appliedSeq = d.issuedSeq
	return updated, true
}
