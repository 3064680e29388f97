package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/insurai/claimdesk/internal/model"
)

// PostgresDispatchLogRepo はPostgreSQLを使用した監査ログリポジトリ。
type PostgresDispatchLogRepo struct {
	db *sql.DB
}

// NewPostgresDispatchLogRepo はPostgresDispatchLogRepoを生成する。
func NewPostgresDispatchLogRepo(db *sql.DB) *PostgresDispatchLogRepo {
	return &PostgresDispatchLogRepo{db: db}
}

// RecordDispatches は送信結果を同一トランザクションで保存する。
// 1件でも失敗した場合は全件ロールバックする。
func (r *PostgresDispatchLogRepo) RecordDispatches(ctx context.Context, entries []model.DispatchLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dispatch_log
		   (id, batch_id, user_id, record_kind, record_id, action, outcome, status_code, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare dispatch log insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.ID, e.BatchID, e.UserID, e.RecordKind, e.RecordID.String(),
			e.Action, string(e.Outcome), e.StatusCode, e.Message,
		)
		if err != nil {
			return fmt.Errorf("failed to insert dispatch log %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const dispatchLogColumns = `id, batch_id, user_id, record_kind, record_id, action, outcome, status_code, message, created_at`

// ListByBatch は指定ユーザーの一括操作1回分の監査ログを作成順に返す。
func (r *PostgresDispatchLogRepo) ListByBatch(ctx context.Context, userID, batchID string) ([]model.DispatchLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+dispatchLogColumns+`
		 FROM dispatch_log
		 WHERE user_id = $1 AND batch_id = $2
		 ORDER BY created_at, record_id`,
		userID, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatch log by batch: %w", err)
	}
	defer rows.Close()
	return scanDispatchLog(rows)
}

// ListRecent は指定ユーザーのsince以降の監査ログを新しい順に最大limit件返す。
func (r *PostgresDispatchLogRepo) ListRecent(ctx context.Context, userID string, since time.Time, limit int) ([]model.DispatchLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+dispatchLogColumns+`
		 FROM dispatch_log
		 WHERE user_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent dispatch log: %w", err)
	}
	defer rows.Close()
	return scanDispatchLog(rows)
}

func scanDispatchLog(rows *sql.Rows) ([]model.DispatchLogEntry, error) {
	entries := []model.DispatchLogEntry{}
	for rows.Next() {
		var (
			e        model.DispatchLogEntry
			recordID string
			outcome  string
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &e.UserID, &e.RecordKind, &recordID,
			&e.Action, &outcome, &e.StatusCode, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch log: %w", err)
		}
		e.RecordID = model.RecordID(recordID)
		e.Outcome = model.BulkOutcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dispatch log: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ DispatchLogRepository = (*PostgresDispatchLogRepo)(nil)
