package reconcile

import (
	"slices"
	"strings"

	"github.com/insurai/claimdesk/internal/model"
)

// notificationSortKeys は通知一覧で指定可能なソートキー。
var notificationSortKeys = map[model.SortKey]bool{
	model.SortKeyNone:      true,
	model.SortKeyCreatedAt: true,
	model.SortKeyTitle:     true,
	model.SortKeyMessage:   true,
}

// ValidNotificationSortKey は通知一覧のソートキーとして有効かを返す。
func ValidNotificationSortKey(key model.SortKey) bool {
	return notificationSortKeys[key]
}

// FilterNotifications は既読状態フィルタと検索語で通知を絞り込む。
// 検索語はタイトルと本文に対して大文字小文字を区別せず部分一致で評価する。
func FilterNotifications(notifications []model.Notification, searchTerm string, filter model.NotificationFilter) []model.Notification {
	term := strings.ToLower(searchTerm)
	out := make([]model.Notification, 0, len(notifications))
	for _, n := range notifications {
		switch filter {
		case model.NotificationFilterUnread:
			if n.ReadStatus {
				continue
			}
		case model.NotificationFilterRead:
			if !n.ReadStatus {
				continue
			}
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(n.Title), term) &&
			!strings.Contains(strings.ToLower(n.Message), term) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// SortNotifications は指定キーで通知を安定ソートした新しい一覧を返す。
// createdAtは日時、それ以外は文字列として比較する。キーが空の場合は入力順を維持する。
func SortNotifications(notifications []model.Notification, sortCfg model.SortConfig) []model.Notification {
	out := slices.Clone(notifications)
	if sortCfg.Key == model.SortKeyNone {
		return out
	}

	compare := func(a, b model.Notification) int {
		switch sortCfg.Key {
		case model.SortKeyCreatedAt:
			return ParseTimestamp(a.CreatedAt).Compare(ParseTimestamp(b.CreatedAt))
		case model.SortKeyTitle:
			return strings.Compare(a.Title, b.Title)
		case model.SortKeyMessage:
			return strings.Compare(a.Message, b.Message)
		}
		return 0
	}
	sign := 1
	if sortCfg.Direction == model.SortDesc {
		sign = -1
	}

	slices.SortStableFunc(out, func(a, b model.Notification) int {
		return sign * compare(a, b)
	})
	return out
}

// ProjectNotifications は絞り込みとソートを適用した表示用一覧を返す。
func ProjectNotifications(raw []model.Notification, view model.NotificationView) []model.Notification {
	return SortNotifications(FilterNotifications(raw, view.SearchTerm, view.Filter), view.Sort)
}

// NotificationStatistics はフィルタ適用前の通知一覧全体から未読・既読数を算出する。
func NotificationStatistics(raw []model.Notification) model.Statistics {
	stats := model.Statistics{Total: len(raw)}
	for _, n := range raw {
		if n.ReadStatus {
			stats.ApprovedOrRead++
		} else {
			stats.PendingOrUnread++
		}
	}
	return stats
}
