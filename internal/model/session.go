package model

import "time"

// Role はストア側で付与されたユーザーロール。
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleHR       Role = "HR"
	RoleAgent    Role = "AGENT"
	RoleAdmin    Role = "ADMIN"
)

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleHR, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Session はBFFのログインセッションを表す。
// ストアへのBearerトークンを保持し、ストアクライアントへ明示的に渡される。
// ログインで確立し、ログアウトまたは期限切れで破棄される。
type Session struct {
	ID         string
	UserID     string
	Role       Role
	StoreToken string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired は指定時刻の時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
