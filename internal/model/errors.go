package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, claim, notification, store, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRemarkRequired       = "REMARK_REQUIRED"
	ErrCodeClaimNotFound        = "CLAIM_NOT_FOUND"
	ErrCodeClaimNotActionable   = "CLAIM_NOT_ACTIONABLE"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeInvalidFilter        = "INVALID_FILTER"
	ErrCodeInvalidSortKey       = "INVALID_SORT_KEY"
	ErrCodeStoreUnauthorized    = "STORE_UNAUTHORIZED"
	ErrCodeStoreRequestFailed   = "STORE_REQUEST_FAILED"
	ErrCodeSessionExpired       = "SESSION_EXPIRED"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeDocumentNotFound     = "DOCUMENT_NOT_FOUND"
	ErrCodeDocumentBlocked      = "DOCUMENT_BLOCKED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
)

// NewRemarkRequiredError は備考未入力のまま承認・却下しようとした場合のエラーを生成する。
func NewRemarkRequiredError(action ClaimAction) *APIError {
	verb := "承認"
	if action == ClaimActionReject {
		verb = "却下"
	}
	return &APIError{
		Code:     ErrCodeRemarkRequired,
		Message:  fmt.Sprintf("%sする前に備考を入力してください。", verb),
		Category: "validation",
		Action:   "備考欄に判断理由を入力してから再度お試しください。",
	}
}

// NewClaimNotFoundError は請求未検出エラーを生成する。
func NewClaimNotFoundError(id RecordID) *APIError {
	return &APIError{
		Code:     ErrCodeClaimNotFound,
		Message:  fmt.Sprintf("指定された請求が見つかりません: %s", id),
		Category: "claim",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewClaimNotActionableError は審査待ちでない、または操作権限のない請求への操作エラーを生成する。
func NewClaimNotActionableError(id RecordID, status ClaimStatus) *APIError {
	return &APIError{
		Code:     ErrCodeClaimNotActionable,
		Message:  fmt.Sprintf("この請求は操作できません: %s (status=%s)", id, status),
		Category: "claim",
		Action:   "審査待ちで操作権限のある請求のみ承認・却下できます。",
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError(id RecordID) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("指定された通知が見つかりません: %s", id),
		Category: "notification",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", filter),
		Category: "validation",
		Action:   "定義済みのフィルタ値を指定してください。",
	}
}

// NewInvalidSortKeyError は無効なソートキーエラーを生成する。
func NewInvalidSortKeyError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSortKey,
		Message:  fmt.Sprintf("無効なソートキーです: %s", key),
		Category: "validation",
		Action:   "一覧の列名をソートキーとして指定してください。",
	}
}

// NewStoreUnauthorizedError はストアが認可エラーを返した場合のエラーを生成する。
func NewStoreUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnauthorized,
		Message:  "アクセスが拒否されました。この操作を行う権限がありません。",
		Category: "auth",
		Action:   "ログインし直すか、管理者に権限を確認してください。",
	}
}

// NewStoreRequestFailedError はストアへのリクエストが失敗した場合のエラーを生成する。
func NewStoreRequestFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreRequestFailed,
		Message:  fmt.Sprintf("ストアへのリクエストに失敗しました: %s", reason),
		Category: "store",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionExpiredError はセッション期限切れエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れています。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidTokenError はストアトークンを解釈できない場合のエラーを生成する。
func NewInvalidTokenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  fmt.Sprintf("トークンが不正です: %s", reason),
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewDocumentNotFoundError は添付書類未検出エラーを生成する。
func NewDocumentNotFoundError(id RecordID, index int) *APIError {
	return &APIError{
		Code:     ErrCodeDocumentNotFound,
		Message:  fmt.Sprintf("請求 %s に書類 #%d はありません。", id, index+1),
		Category: "claim",
		Action:   "書類一覧を確認してください。",
	}
}

// NewDocumentBlockedError は添付書類のURLが安全性検証で拒否された場合のエラーを生成する。
func NewDocumentBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeDocumentBlocked,
		Message:  "セキュリティポリシーにより、この書類へのアクセスはブロックされました。",
		Category: "validation",
		Action:   "管理者に書類の保存先を確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディの不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewUnauthorizedError は未認証リクエストのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
