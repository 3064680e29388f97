// Package desk はセッションごとの作業状態（デスク）を管理する。
//
// デスクはストアから取得した一覧（権威データのキャッシュ）、ローカルの下書き、
// 表示パラメータ、選択集合を保持し、表示用一覧の生成と審査・既読アクションの
// 送信を行う。状態はミューテックスで保護し、ストアとの通信中はロックを保持しない。
//
// 取得の競合は「最後に発行した取得が勝つ」方針で解決する。取得ごとに単調増加の
// シーケンス番号を採番し、適用済みの番号より古い取得結果は破棄する。アクションの
// 確定結果を反映した時点でそれ以前に発行された取得も古いものとして扱う。
package desk

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/insurai/claimdesk/internal/metrics"
	"github.com/insurai/claimdesk/internal/model"
	"github.com/insurai/claimdesk/internal/security"
	"github.com/insurai/claimdesk/internal/worker/dispatch"
)

// ClaimStore は請求デスクが利用するストア操作。
type ClaimStore interface {
	FetchClaims(ctx context.Context, sess *model.Session) ([]model.Claim, error)
	ApproveClaim(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error)
	RejectClaim(ctx context.Context, sess *model.Session, id model.RecordID, remarks string) (*model.Claim, error)
}

// NotificationStore は通知デスクが利用するストア操作。
type NotificationStore interface {
	FetchNotifications(ctx context.Context, sess *model.Session) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, sess *model.Session, id model.RecordID) (*model.Notification, error)
}

// DispatchRecorder はアクションの送信結果を監査ログとして保存する。
type DispatchRecorder interface {
	RecordDispatches(ctx context.Context, entries []model.DispatchLogEntry) error
}

// Options はデスクの共通依存。
type Options struct {
	Logger    *slog.Logger
	Pool      *dispatch.Pool
	Sanitizer security.TextSanitizerService
	Metrics   metrics.MetricsCollector
	// Recorder は省略可能。nilの場合は監査ログを保存しない。
	Recorder DispatchRecorder
	// NewID はバッチIDと監査ログIDの生成関数。省略時はUUIDv4。
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Pool == nil {
		o.Pool = dispatch.NewPool(o.Logger, 0)
	}
	if o.Sanitizer == nil {
		o.Sanitizer = security.NewTextSanitizer()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop{}
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.New().String() }
	}
	return o
}

const (
	kindClaim        = "claim"
	kindNotification = "notification"
)

// record は送信結果をメトリクスと監査ログに記録する。
// 監査ログの保存失敗はログに残すのみで呼び出し元には返さない。
func (o Options) record(ctx context.Context, sess *model.Session, report *model.BulkReport, kind string) {
	entries := make([]model.DispatchLogEntry, 0,
		len(report.Succeeded)+len(report.Failed)+len(report.SkippedStale)+len(report.SkippedInvalid))

	add := func(id model.RecordID, outcome model.BulkOutcome, status int, msg string) {
		o.Metrics.RecordDispatch(report.Action, string(outcome))
		entries = append(entries, model.DispatchLogEntry{
			ID:         o.NewID(),
			BatchID:    report.BatchID,
			UserID:     sess.UserID,
			RecordKind: kind,
			RecordID:   id,
			Action:     report.Action,
			Outcome:    outcome,
			StatusCode: status,
			Message:    msg,
		})
	}
	for _, id := range report.Succeeded {
		add(id, model.OutcomeSucceeded, 0, "")
	}
	for _, f := range report.Failed {
		add(f.ID, model.OutcomeFailed, f.StatusCode, f.Message)
	}
	for _, id := range report.SkippedStale {
		add(id, model.OutcomeSkippedStale, 0, "")
	}
	for _, id := range report.SkippedInvalid {
		add(id, model.OutcomeSkippedInvalid, 0, "")
	}

	if o.Recorder == nil || len(entries) == 0 {
		return
	}
	// 監査ログはリクエストがキャンセルされても保存する
	if err := o.Recorder.RecordDispatches(context.WithoutCancel(ctx), entries); err != nil {
		o.Logger.Error("監査ログの保存に失敗しました",
			slog.String("batch_id", report.BatchID),
			slog.String("error", err.Error()),
		)
	}
}

// ViewUpdate は表示パラメータの部分更新。nilのフィールドは変更しない。
// SortDirectionはSortKeyを指定した場合のみ参照し、空の場合は昇順とする。
type ViewUpdate struct {
	SearchTerm    *string
	Filter        *string
	SortKey       *model.SortKey
	SortDirection model.SortDirection
}

// resolveSort はソート指定を検証し、適用するSortConfigを返す。指定がない場合はnilを返す。
func (u ViewUpdate) resolveSort(valid func(model.SortKey) bool) (*model.SortConfig, error) {
	if u.SortKey == nil {
		return nil, nil
	}
	if !valid(*u.SortKey) {
		return nil, model.NewInvalidSortKeyError(string(*u.SortKey))
	}
	dir := u.SortDirection
	if dir == "" {
		dir = model.SortAsc
	}
	if !dir.Valid() {
		return nil, model.NewInvalidSortKeyError(string(dir))
	}
	return &model.SortConfig{Key: *u.SortKey, Direction: dir}, nil
}
