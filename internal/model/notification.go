package model

// Notification はユーザー宛ての通知を表す。
type Notification struct {
	ID         RecordID `json:"id"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	ReadStatus bool     `json:"readStatus"`
	CreatedAt  string   `json:"createdAt"`
	UserID     RecordID `json:"userId,omitempty"`
	Role       string   `json:"role,omitempty"`
}

// Unread は既読化アクションの対象かどうかを返す。
func (n Notification) Unread() bool {
	return !n.ReadStatus
}

// NotificationFilter は通知一覧の既読状態フィルタ。
type NotificationFilter string

const (
	// NotificationFilterAll は全通知を表示するフィルタ。
	NotificationFilterAll NotificationFilter = "all"
	// NotificationFilterUnread は未読通知のみを表示するフィルタ。
	NotificationFilterUnread NotificationFilter = "unread"
	// NotificationFilterRead は既読通知のみを表示するフィルタ。
	NotificationFilterRead NotificationFilter = "read"
)

// Valid は定義済みのフィルタかどうかを返す。
func (f NotificationFilter) Valid() bool {
	switch f {
	case NotificationFilterAll, NotificationFilterUnread, NotificationFilterRead:
		return true
	}
	return false
}
