package store

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingToken はセッションにストアトークンがない場合のエラー。
var ErrMissingToken = errors.New("store token is missing")

// Error はストアAPI呼び出しの失敗を表す。
// StatusCodeが0の場合は通信自体が失敗したことを示す。
type Error struct {
	Op         string // 操作名（fetch_claims, approve_claim など）
	StatusCode int
	// Message はストアが返したエラーメッセージ。空の場合もある。
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		if e.Message != "" {
			return fmt.Sprintf("store %s: status %d: %s", e.Op, e.StatusCode, e.Message)
		}
		return fmt.Sprintf("store %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized はストアが認証・認可エラーを返したかどうかを返す。
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsUnauthorized はerrがストアの認証・認可エラーかどうかを返す。
func IsUnauthorized(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Unauthorized()
}

// StatusCode はerrに含まれるストアのHTTPステータスを返す。ストアのエラーでない場合は0。
func StatusCode(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// UserMessage はエラーをユーザー向けの短い説明に変換する。
func UserMessage(err error) string {
	var se *Error
	if !errors.As(err, &se) {
		return "予期しないエラーが発生しました"
	}
	switch {
	case se.Unauthorized():
		return "アクセスが拒否されました"
	case se.StatusCode == http.StatusNotFound:
		return "ストアに対象のレコードがありません"
	case se.StatusCode >= 500:
		return fmt.Sprintf("ストアでエラーが発生しました (HTTP %d)", se.StatusCode)
	case se.StatusCode > 0:
		if se.Message != "" {
			return se.Message
		}
		return fmt.Sprintf("ストアがリクエストを拒否しました (HTTP %d)", se.StatusCode)
	}
	return "ストアに接続できませんでした"
}
