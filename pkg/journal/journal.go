package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// 常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀)
	FileModeDefault fs.FileMode = 0644
)

const defaultBuffer = 1024

// Writer 非同步的 JSON Lines 稽核日誌
//
// Append(不等待) -> Channel -> run loop -> bufio -> Flush + Sync
type Writer struct {
	file   *os.File
	buf    *bufio.Writer
	queue  chan any
	closed atomic.Bool

	dropped atomic.Int64
	written atomic.Int64
	failed  atomic.Int64

	// pending 已編碼但尚未 fsync 的筆數，只有寫入迴圈 (或 Close) 會存取
	pending int64

	errMu    sync.Mutex
	firstErr error

	startOnce sync.Once
	cancel    context.CancelFunc
	stopped   chan struct{}
}

// Option 定義了 Writer 的配置選項函數
type Option func(*Writer)

// WithBuffer 設定輸送帶的容量
func WithBuffer(size int) Option {
	return func(w *Writer) {
		if size > 0 {
			w.queue = make(chan any, size)
		}
	}
}

// Open 開啟或建立一個日誌檔
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func Open(path string, opts ...Option) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileModeDefault)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}
	w := &Writer{
		file:    file,
		buf:     bufio.NewWriter(file),
		queue:   make(chan any, defaultBuffer),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start 啟動寫入迴圈 (非同步)
func (w *Writer) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		go w.run(ctx)
	})
}

// Append 放入輸送帶，不會阻塞；滿了或已關閉時丟棄並回傳 false
func (w *Writer) Append(v any) bool {
	if w.closed.Load() {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.queue <- v:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Dropped 被丟棄的筆數
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Written 已 fsync 到硬碟的筆數
func (w *Writer) Written() int64 {
	return w.written.Load()
}

// Failed 寫入失敗而遺失的筆數
func (w *Writer) Failed() int64 {
	return w.failed.Load()
}

// Err 第一個寫入錯誤
func (w *Writer) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.firstErr
}

// Close 停止迴圈、寫完剩下的資料後關閉檔案
func (w *Writer) Close() error {
	w.closed.Store(true)
	w.startOnce.Do(func() {
		close(w.stopped)
	})
	if w.cancel != nil {
		w.cancel()
	}
	<-w.stopped

	// 未啟動或迴圈結束後可能仍有殘留
	w.drain()
	if err := w.file.Close(); err != nil {
		w.fail(0, errors.Wrap(err, "close journal"))
	}
	return w.Err()
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.stopped)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的資料寫完
			w.drain()
			return
		case v := <-w.queue:
			w.write(v)
			w.drain()
		}
	}
}

// drain 寫入目前輸送帶上的所有資料並刷入硬碟
func (w *Writer) drain() {
	for {
		select {
		case v := <-w.queue:
			w.write(v)
		default:
			w.sync()
			return
		}
	}
}

func (w *Writer) write(v any) {
	if err := json.NewEncoder(w.buf).Encode(v); err != nil {
		w.fail(1, errors.Wrap(err, "encode journal record"))
		return
	}
	w.pending++
}

// sync 只有 Flush 與 Sync 都成功時才計入 written
func (w *Writer) sync() {
	n := w.pending
	if n == 0 {
		return
	}
	w.pending = 0
	if err := w.buf.Flush(); err != nil {
		w.fail(n, errors.Wrap(err, "flush journal"))
		return
	}
	if err := w.file.Sync(); err != nil {
		w.fail(n, errors.Wrap(err, "sync journal"))
		return
	}
	w.written.Add(n)
}

// fail 記錄遺失筆數，只保留第一個錯誤
func (w *Writer) fail(n int64, err error) {
	w.failed.Add(n)
	w.errMu.Lock()
	if w.firstErr == nil {
		w.firstErr = err
	}
	w.errMu.Unlock()
}

// ReadAll 逐行讀取日誌
// callback 接收一筆 json.RawMessage，避免一次將所有資料載入記憶體
func ReadAll(path string, callback func(raw json.RawMessage) error) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open journal %s", path)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "decode journal record")
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
}
