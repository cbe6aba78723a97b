// Package idempotency 以呼叫端提供的 key 去除重複的變更請求
package idempotency

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL 快取結果的存活時間
const DefaultTTL = 10 * time.Minute

// ErrAborted 執行中的操作 panic 時，等待同一個 key 的呼叫者會重新嘗試
var ErrAborted = errors.New("idempotent operation aborted")

// entry 一個 key 的狀態
// done 關閉前為執行中 (in-flight)，sweep 不會移除執行中的 entry
type entry[T any] struct {
	done      chan struct{}
	completed bool
	result    T
	err       error
	createdAt time.Time
}

// completion 依完成順序排列，sweep 從頭部開始檢查
type completion[T any] struct {
	key   string
	entry *entry[T]
}

// Cache 有時效的冪等結果快取
// 同一個 key 在 TTL 內只會真正執行一次成功的操作
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	order   []completion[T]
	ttl     time.Duration
	now     func() time.Time
}

// Option 定義了 Cache 的配置選項函數
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL 設定快取存活時間
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock 設定時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New 建立冪等快取
func New[T any](opts ...Option) *Cache[T] {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		entries: make(map[string]*entry[T]),
		ttl:     o.ttl,
		now:     o.now,
	}
}

// Do 以 key 執行 fn
//
// 參數:
//
//	key: 冪等 key，空字串代表不做去重
//	fn: 實際的變更操作
//
// 回傳:
//
//	T: 操作結果 (命中時為第一次的結果)
//	bool: 是否為快取命中 (replayed)
//	error: fn 的錯誤，錯誤不會被快取
func (c *Cache[T]) Do(key string, fn func() (T, error)) (T, bool, error) {
	if key == "" {
		c.mu.Lock()
		c.sweepLocked(c.now())
		c.mu.Unlock()

		result, err := fn()
		return result, false, err
	}

	for {
		c.mu.Lock()
		c.sweepLocked(c.now())
		e, ok := c.entries[key]
		if !ok {
			// 檢查與插入在同一把鎖內完成，之後同 key 的呼叫者都會等待這個 entry
			e = &entry[T]{done: make(chan struct{})}
			c.entries[key] = e
			c.mu.Unlock()
			return c.run(key, e, fn)
		}
		c.mu.Unlock()

		<-e.done
		if e.err == nil {
			return e.result, true, nil
		}
		// 前一次執行失敗，entry 已移除，重新競爭執行權
	}
}

// run 執行 fn 並把結果寫回 entry
func (c *Cache[T]) run(key string, e *entry[T], fn func() (T, error)) (result T, replayed bool, err error) {
	finished := false
	defer func() {
		if !finished {
			var zero T
			c.finish(key, e, zero, ErrAborted)
		}
	}()

	result, err = fn()
	c.finish(key, e, result, err)
	finished = true
	return result, false, err
}

func (c *Cache[T]) finish(key string, e *entry[T], result T, err error) {
	c.mu.Lock()
	if err != nil {
		delete(c.entries, key)
	} else {
		e.result = result
		e.completed = true
		e.createdAt = c.now()
		c.order = append(c.order, completion[T]{key: key, entry: e})
	}
	e.err = err
	c.mu.Unlock()
	close(e.done)
}

// sweepLocked 移除過期的 entry，呼叫前必須持有 mu
// 執行中的 entry 不在 order 裡，不會被移除
func (c *Cache[T]) sweepLocked(now time.Time) {
	n := 0
	for ; n < len(c.order); n++ {
		head := c.order[n]
		if now.Sub(head.entry.createdAt) <= c.ttl {
			break
		}
		if c.entries[head.key] == head.entry {
			delete(c.entries, head.key)
		}
	}
	if n > 0 {
		clear(c.order[:n])
		c.order = c.order[n:]
	}
}

// Len 目前快取中的 entry 數量 (含執行中)
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
