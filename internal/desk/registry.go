package desk

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry はセッションIDごとの請求・通知デスクを保持する。
// デスクは初回アクセス時に生成され、一定時間使われなければ破棄される。
type Registry struct {
	claims        ClaimStore
	notifications NotificationStore
	opts          Options
	idleTTL       time.Duration
	now           func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	claims        *ClaimDesk
	notifications *NotificationDesk
	lastUsed      time.Time
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
// idleTTLが0以下の場合はデフォルト値30分を使用する。
func NewRegistry(claims ClaimStore, notifications NotificationStore, opts Options, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{
		claims:        claims,
		notifications: notifications,
		opts:          opts.withDefaults(),
		idleTTL:       idleTTL,
		now:           time.Now,
		entries:       make(map[string]*registryEntry),
	}
}

func (r *Registry) touch(sessionID string) *registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sessionID]
	if !ok {
		e = &registryEntry{
			claims:        NewClaimDesk(r.claims, r.opts),
			notifications: NewNotificationDesk(r.notifications, r.opts),
		}
		r.entries[sessionID] = e
		r.opts.Metrics.SetActiveDesks(len(r.entries))
	}
	e.lastUsed = r.now()
	return e
}

// Claims はセッションの請求デスクを返す。
func (r *Registry) Claims(sessionID string) *ClaimDesk {
	return r.touch(sessionID).claims
}

// Notifications はセッションの通知デスクを返す。
func (r *Registry) Notifications(sessionID string) *NotificationDesk {
	return r.touch(sessionID).notifications
}

// Drop はセッションのデスクを破棄する。ログアウト時に呼び出される。
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[sessionID]; ok {
		delete(r.entries, sessionID)
		r.opts.Metrics.SetActiveDesks(len(r.entries))
	}
}

// Len は保持しているデスク数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// EvictIdle はidleTTLを超えて使われていないデスクを破棄し、破棄した数を返す。
func (r *Registry) EvictIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	evicted := 0
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.opts.Metrics.SetActiveDesks(len(r.entries))
	}
	return evicted
}

// Start は指定間隔で未使用デスクの破棄を行う。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.opts.Logger.Info("デスクの破棄ループを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("idle_ttl", r.idleTTL),
	)

	for {
		select {
		case <-ctx.Done():
			r.opts.Logger.Info("デスクの破棄ループを停止しました")
			return
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				r.opts.Logger.Info("未使用のデスクを破棄しました",
					slog.Int("evicted", n),
					slog.Int("remaining", r.Len()),
				)
			}
		}
	}
}
