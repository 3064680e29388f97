// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/insurai/claimdesk/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// DispatchLogRepository はアクション送信結果の監査ログの永続化インターフェース。
type DispatchLogRepository interface {
	// RecordDispatches は送信結果を同一トランザクションで保存する。
	RecordDispatches(ctx context.Context, entries []model.DispatchLogEntry) error
	// ListByBatch は指定ユーザーの一括操作1回分の監査ログを作成順に返す。
	ListByBatch(ctx context.Context, userID, batchID string) ([]model.DispatchLogEntry, error)
	// ListRecent は指定ユーザーの直近の監査ログを新しい順に最大limit件返す。
	ListRecent(ctx context.Context, userID string, since time.Time, limit int) ([]model.DispatchLogEntry, error)
}
