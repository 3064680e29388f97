package reconcile

import (
	"cmp"
	"slices"
	"strings"

	"github.com/insurai/claimdesk/internal/model"
)

// claimSortKeys は請求一覧で指定可能なソートキー。
var claimSortKeys = map[model.SortKey]bool{
	model.SortKeyNone:         true,
	model.SortKeyEmployeeName: true,
	model.SortKeyEmployeeID:   true,
	model.SortKeyTitle:        true,
	model.SortKeyPolicyName:   true,
	model.SortKeyStatus:       true,
	model.SortKeyAmount:       true,
	model.SortKeyClaimDate:    true,
}

// claimStatusFilters は請求一覧で指定可能なステータスフィルタ。
var claimStatusFilters = map[string]bool{
	model.StatusFilterAll:             true,
	string(model.ClaimStatusPending):  true,
	string(model.ClaimStatusApproved): true,
	string(model.ClaimStatusRejected): true,
}

// ValidClaimSortKey は請求一覧のソートキーとして有効かを返す。
func ValidClaimSortKey(key model.SortKey) bool {
	return claimSortKeys[key]
}

// ValidClaimStatusFilter は請求一覧のステータスフィルタとして有効かを返す。
func ValidClaimStatusFilter(filter string) bool {
	return claimStatusFilters[filter]
}

// MergeDrafts はストアから取得した請求一覧にローカルの下書きを重ねた新しい一覧を返す。
// 下書きに含まれないフィールドはそのまま引き継ぎ、レコードの追加・削除は行わない。
// 一覧に存在しないIDの下書きは無視する。
func MergeDrafts(raw []model.Claim, drafts map[model.RecordID]model.ClaimDraft) []model.Claim {
	merged := make([]model.Claim, len(raw))
	for i, c := range raw {
		out := c.Clone()
		if out.Documents == nil {
			out.Documents = []string{}
		}
		if d, ok := drafts[c.ID]; ok {
			out.Remarks = d.Remarks
		}
		merged[i] = out
	}
	return merged
}

// FilterClaims はステータスフィルタと検索語で請求を絞り込む。
// statusFilterが"All"または空の場合はステータスで絞り込まない。
// 検索語は従業員名、従業員ID、請求種別、保険プラン名に対して大文字小文字を区別せず部分一致で評価する。
func FilterClaims(claims []model.Claim, searchTerm, statusFilter string) []model.Claim {
	term := strings.ToLower(searchTerm)
	out := make([]model.Claim, 0, len(claims))
	for _, c := range claims {
		if statusFilter != "" && statusFilter != model.StatusFilterAll && string(c.Status) != statusFilter {
			continue
		}
		if term != "" && !claimMatches(c, term) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func claimMatches(c model.Claim, lowerTerm string) bool {
	for _, field := range []string{c.EmployeeName, c.EmployeeIDDisplay, c.Title, c.PolicyName} {
		if strings.Contains(strings.ToLower(field), lowerTerm) {
			return true
		}
	}
	return false
}

// SortClaims は指定キーで請求を安定ソートした新しい一覧を返す。
// amountは数値（解釈不能は0）、claimDateは日時、それ以外は文字列として比較する。
// キーが空の場合は入力順をそのまま返す。
func SortClaims(claims []model.Claim, sortCfg model.SortConfig) []model.Claim {
	out := slices.Clone(claims)
	if sortCfg.Key == model.SortKeyNone {
		return out
	}

	var compare func(a, b model.Claim) int
	switch sortCfg.Key {
	case model.SortKeyAmount:
		compare = func(a, b model.Claim) int {
			return cmp.Compare(ParseAmount(string(a.Amount)), ParseAmount(string(b.Amount)))
		}
	case model.SortKeyClaimDate:
		compare = func(a, b model.Claim) int {
			return ParseTimestamp(a.ClaimDate).Compare(ParseTimestamp(b.ClaimDate))
		}
	default:
		compare = func(a, b model.Claim) int {
			return strings.Compare(claimField(a, sortCfg.Key), claimField(b, sortCfg.Key))
		}
	}

	if sortCfg.Direction == model.SortDesc {
		asc := compare
		compare = func(a, b model.Claim) int { return -asc(a, b) }
	}

	slices.SortStableFunc(out, compare)
	return out
}

func claimField(c model.Claim, key model.SortKey) string {
	switch key {
	case model.SortKeyEmployeeName:
		return c.EmployeeName
	case model.SortKeyEmployeeID:
		return c.EmployeeIDDisplay
	case model.SortKeyTitle:
		return c.Title
	case model.SortKeyPolicyName:
		return c.PolicyName
	case model.SortKeyStatus:
		return string(c.Status)
	}
	return ""
}

// ProjectClaims は下書きの重ね合わせ、絞り込み、ソートを順に適用した表示用一覧を返す。
func ProjectClaims(raw []model.Claim, drafts map[model.RecordID]model.ClaimDraft, view model.ClaimView) []model.Claim {
	merged := MergeDrafts(raw, drafts)
	filtered := FilterClaims(merged, view.SearchTerm, view.StatusFilter)
	return SortClaims(filtered, view.Sort)
}

// ClaimStatistics はフィルタ適用前の請求一覧全体から集計値を算出する。
func ClaimStatistics(raw []model.Claim) model.Statistics {
	stats := model.Statistics{Total: len(raw)}
	for _, c := range raw {
		amount := ParseAmount(string(c.Amount))
		stats.TotalAmount += amount
		switch c.Status {
		case model.ClaimStatusPending:
			stats.PendingOrUnread++
			stats.PendingAmount += amount
		case model.ClaimStatusApproved:
			stats.ApprovedOrRead++
		case model.ClaimStatusRejected:
			stats.Rejected++
		}
	}
	return stats
}
