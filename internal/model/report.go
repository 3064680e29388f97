package model

import "time"

// BulkOutcome は一括操作における1レコードの結果区分。
type BulkOutcome string

const (
	// OutcomeSucceeded はストアが更新を確認した。
	OutcomeSucceeded BulkOutcome = "succeeded"
	// OutcomeFailed はストアへのリクエストが失敗した。
	OutcomeFailed BulkOutcome = "failed"
	// OutcomeSkippedStale は送信時点で対象外になっていたため送信しなかった。
	OutcomeSkippedStale BulkOutcome = "skipped_stale"
	// OutcomeSkippedInvalid は備考未入力などの検証に失敗したため送信しなかった。
	OutcomeSkippedInvalid BulkOutcome = "skipped_invalid"
)

// BulkFailure は送信に失敗したレコードと、ユーザー向けのメッセージ。
type BulkFailure struct {
	ID         RecordID `json:"id"`
	StatusCode int      `json:"status_code,omitempty"`
	Message    string   `json:"message"`
}

// BulkReport は一括操作の結果。
// 各レコードの成否は互いに独立しており、失敗は他レコードの成功を取り消さない。
type BulkReport struct {
	BatchID        string        `json:"batch_id"`
	Action         string        `json:"action"`
	Dispatched     int           `json:"dispatched"`
	Succeeded      []RecordID    `json:"succeeded"`
	Failed         []BulkFailure `json:"failed"`
	SkippedStale   []RecordID    `json:"skipped_stale"`
	SkippedInvalid []RecordID    `json:"skipped_invalid"`
	// Notices はユーザーに表示する通知文。失敗1件につき1つ。
	Notices []string `json:"notices"`
}

// NewBulkReport は空のスライスで初期化したBulkReportを返す。
func NewBulkReport(batchID, action string) *BulkReport {
	return &BulkReport{
		BatchID:        batchID,
		Action:         action,
		Succeeded:      []RecordID{},
		Failed:         []BulkFailure{},
		SkippedStale:   []RecordID{},
		SkippedInvalid: []RecordID{},
		Notices:        []string{},
	}
}

// DispatchLogEntry は一括・単体アクションの送信結果の監査ログ1行。
type DispatchLogEntry struct {
	ID         string
	BatchID    string
	UserID     string
	RecordKind string // "claim" または "notification"
	RecordID   RecordID
	Action     string
	Outcome    BulkOutcome
	StatusCode int
	Message    string
	CreatedAt  time.Time
}
