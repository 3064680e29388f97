// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RecordID は請求・通知レコードの不透明な識別子。
// リモートストアは数値で返すことがあるため、JSONでは数値と文字列の両方を受け付ける。
type RecordID string

// UnmarshalJSON は数値・文字列どちらの表現もRecordIDとして読み取る。
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid record id: %w", err)
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid record id: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// String はRecordIDを文字列として返す。
func (id RecordID) String() string {
	return string(id)
}

// ClaimStatus は請求の審査ステータスを表す。
type ClaimStatus string

const (
	// ClaimStatusPending は審査待ちの請求。
	ClaimStatusPending ClaimStatus = "Pending"
	// ClaimStatusApproved は承認済みの請求。
	ClaimStatusApproved ClaimStatus = "Approved"
	// ClaimStatusRejected は却下済みの請求。
	ClaimStatusRejected ClaimStatus = "Rejected"
)

// Amount は請求金額の生の表現。
// ストアは文字列でも数値でも返すため、受け取った表現をそのまま保持し、
// 数値としての解釈は reconcile.ParseAmount に任せる。
type Amount string

// UnmarshalJSON は数値・文字列どちらの表現もAmountとして読み取る。
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(string(data))
	return nil
}

// Claim はリモートストアから取得した保険金請求を表す。
type Claim struct {
	ID                RecordID    `json:"id"`
	Status            ClaimStatus `json:"status"`
	EmployeeName      string      `json:"employeeName"`
	EmployeeIDDisplay string      `json:"employeeIdDisplay"`
	Title             string      `json:"title"`
	PolicyName        string      `json:"policyName"`
	Description       string      `json:"description,omitempty"`
	Amount            Amount      `json:"amount"`
	ClaimDate         string      `json:"claimDate"`
	Remarks           string      `json:"remarks"`
	Documents         []string    `json:"documents"`
	// CanModify はサーバー側で評価済みの操作可否。nilは「指定なし」で操作可能として扱う。
	CanModify *bool `json:"canModify,omitempty"`
}

// UnmarshalJSON はemployeeIdDisplayが数値で届いた場合も文字列化して取り込む。
func (c *Claim) UnmarshalJSON(data []byte) error {
	type plain Claim
	aux := struct {
		*plain
		EmployeeIDDisplay json.RawMessage `json:"employeeIdDisplay"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.EmployeeIDDisplay = stringifyJSONScalar(aux.EmployeeIDDisplay)
	if c.Documents == nil {
		c.Documents = []string{}
	}
	return nil
}

// Modifiable はサーバーが操作を明示的に許可しているかを返す。
// canModifyを含まない請求は操作不可として扱う。
func (c Claim) Modifiable() bool {
	return c.CanModify != nil && *c.CanModify
}

// Actionable は承認・却下の対象になれるかを返す。
// 審査待ちかつ操作可能な請求のみが対象となる。
func (c Claim) Actionable() bool {
	return c.Status == ClaimStatusPending && c.Modifiable()
}

// Clone はスライスを共有しないコピーを返す。
func (c Claim) Clone() Claim {
	out := c
	out.Documents = append([]string{}, c.Documents...)
	if c.CanModify != nil {
		v := *c.CanModify
		out.CanModify = &v
	}
	return out
}

// ClaimDraft はローカルに保持される未送信の編集内容。
// 現状は備考のみ。承認・却下の送信まではサーバーに保存されない。
type ClaimDraft struct {
	Remarks string
}

// ClaimAction は請求に対する審査アクション。
type ClaimAction string

const (
	// ClaimActionApprove は承認アクション。
	ClaimActionApprove ClaimAction = "approve"
	// ClaimActionReject は却下アクション。
	ClaimActionReject ClaimAction = "reject"
)

// ResultStatus はアクション成功時に請求が遷移するステータスを返す。
func (a ClaimAction) ResultStatus() ClaimStatus {
	if a == ClaimActionReject {
		return ClaimStatusRejected
	}
	return ClaimStatusApproved
}

// stringifyJSONScalar はJSONのスカラー値を表示用文字列に変換する。
func stringifyJSONScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Trim(string(raw), `"`)
}
