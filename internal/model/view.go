package model

// StatusFilterAll はステータスで絞り込まないことを表すフィルタ値。
const StatusFilterAll = "All"

// SortDirection はソート方向。
type SortDirection string

const (
	// SortAsc は昇順。
	SortAsc SortDirection = "asc"
	// SortDesc は降順。
	SortDesc SortDirection = "desc"
)

// Valid は定義済みのソート方向かどうかを返す。
func (d SortDirection) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// Toggle は逆方向を返す。
func (d SortDirection) Toggle() SortDirection {
	if d == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// SortKey は一覧のソートキー。空文字列はサーバーの返却順を維持する。
type SortKey string

// 請求一覧のソートキー
const (
	SortKeyNone         SortKey = ""
	SortKeyEmployeeName SortKey = "employeeName"
	SortKeyEmployeeID   SortKey = "employeeIdDisplay"
	SortKeyTitle        SortKey = "title"
	SortKeyPolicyName   SortKey = "policyName"
	SortKeyStatus       SortKey = "status"
	SortKeyAmount       SortKey = "amount"
	SortKeyClaimDate    SortKey = "claimDate"
)

// 通知一覧のソートキー
const (
	SortKeyCreatedAt SortKey = "createdAt"
	SortKeyMessage   SortKey = "message"
)

// SortConfig はソートキーと方向の組。
type SortConfig struct {
	Key       SortKey
	Direction SortDirection
}

// NextSort は同じキーで再度ソートされたときに方向を切り替える。
// 異なるキーまたは降順からの再指定は昇順で開始する。
func (s SortConfig) NextSort(key SortKey) SortConfig {
	dir := SortAsc
	if s.Key == key && s.Direction == SortAsc {
		dir = SortDesc
	}
	return SortConfig{Key: key, Direction: dir}
}

// ClaimView は請求一覧の表示パラメータ。
type ClaimView struct {
	SearchTerm   string
	StatusFilter string
	Sort         SortConfig
}

// DefaultClaimView は初期表示パラメータを返す。
func DefaultClaimView() ClaimView {
	return ClaimView{
		StatusFilter: StatusFilterAll,
		Sort:         SortConfig{Direction: SortAsc},
	}
}

// NotificationView は通知一覧の表示パラメータ。
type NotificationView struct {
	SearchTerm string
	Filter     NotificationFilter
	Sort       SortConfig
}

// DefaultNotificationView は初期表示パラメータを返す。
func DefaultNotificationView() NotificationView {
	return NotificationView{
		Filter: NotificationFilterAll,
		Sort:   SortConfig{Direction: SortAsc},
	}
}

// Statistics は取得済み一覧全体（フィルタ適用前）の集計値。
// 通知の場合 PendingOrUnread は未読数、ApprovedOrRead は既読数となり、
// Rejected と金額は0となる。
type Statistics struct {
	Total           int     `json:"total"`
	PendingOrUnread int     `json:"pending_or_unread"`
	ApprovedOrRead  int     `json:"approved_or_read"`
	Rejected        int     `json:"rejected"`
	TotalAmount     float64 `json:"total_amount"`
	PendingAmount   float64 `json:"pending_amount"`
}
