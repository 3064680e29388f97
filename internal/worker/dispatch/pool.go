// Package dispatch は一括操作のレコード単位リクエストを並列に送信する。
// 各タスクの成否は独立しており、1件の失敗やパニックが他のタスクを中断することはない。
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Task は1レコード分の送信処理。
type Task[T any] struct {
	Key string
	Run func(ctx context.Context) (T, error)
}

// Result はTaskの実行結果。Tasksと同じ順序で返される。
type Result[T any] struct {
	Key      string
	Value    T
	Err      error
	Duration time.Duration
}

// PanicError はタスク内で発生したパニックをエラーとして表す。
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("dispatch task panicked: %v", e.Value)
}

// Pool はsemaphoreパターンで最大並列数を制御しながらタスクを実行する。
type Pool struct {
	logger         *slog.Logger
	maxConcurrency int
}

// NewPool はPoolの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値8を使用する。
func NewPool(logger *slog.Logger, maxConcurrency int) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &Pool{
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// MaxConcurrency は最大並列数を返す。
func (p *Pool) MaxConcurrency() int {
	return p.maxConcurrency
}

// Run はすべてのタスクを実行し、全件の完了を待ってから結果を返す。
// 個々のタスクのエラーはResult.Errに格納され、Run自体はエラーを返さない。
// ctxがキャンセルされた場合、未開始のタスクはctx.Err()を結果として即座に完了する。
func Run[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	start := time.Now()

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for i, task := range tasks {
		results[i].Key = task.Key

		select {
		case sem <- struct{}{}: // semaphore取得（ブロック）
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, t Task[T]) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			results[i] = runTask(ctx, p.logger, t)
		}(i, task)
	}

	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.Debug("一括送信が完了しました",
		slog.Int("task_count", len(tasks)),
		slog.Int("failed_count", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return results
}

// runTask は1タスクを実行し、パニックを当該タスクの失敗として回収する。
func runTask[T any](ctx context.Context, logger *slog.Logger, t Task[T]) (res Result[T]) {
	res.Key = t.Key
	begin := time.Now()
	defer func() {
		res.Duration = time.Since(begin)
		if v := recover(); v != nil {
			res.Err = &PanicError{Value: v, Stack: debug.Stack()}
			logger.Error("送信タスクでパニックが発生しました",
				slog.String("key", t.Key),
				slog.Any("panic", v),
			)
		}
	}()

	res.Value, res.Err = t.Run(ctx)
	return res
}
