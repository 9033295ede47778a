package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileOp 是轮询器能观测到的文件变化类型。
type FileOp int

const (
	// FileOpCreate 文件出现（首次可见）
	FileOpCreate FileOp = iota
	// FileOpWrite 文件内容被修改
	FileOpWrite
	// FileOpRemove 文件被删除
	FileOpRemove
)

// String 返回 FileOp 的可读名称。
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent 是一次防抖后的文件变化事件。
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// FileWatcher 以 mtime 轮询的方式监视配置文件。
// 不依赖平台相关的 inotify/kqueue：配置文件极少变更，
// 秒级轮询的延迟与开销对热重载完全够用，且在容器卷挂载下行为一致。
//
// 同一路径在防抖窗口内的多次变化合并为一次回调；
// 防抖与待发事件全部由事件循环 goroutine 独占，无跨 goroutine 共享。
type FileWatcher struct {
	mu sync.RWMutex

	paths        []string
	pollInterval time.Duration
	debounce     time.Duration

	callbacks []func(FileEvent)

	running  bool
	stopChan chan struct{}
	events   chan FileEvent

	// 事件循环 goroutine 独占
	lastModTimes map[string]time.Time

	logger *zap.Logger
}

// WatcherOption 配置 FileWatcher。
type WatcherOption func(*FileWatcher)

// WithDebounceDelay 设置事件防抖窗口。
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.debounce = d }
}

// WithPollInterval 设置 mtime 轮询间隔。
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.pollInterval = d }
}

// WithWatcherLogger 设置日志记录器。
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) { w.logger = logger }
}

// NewFileWatcher 创建文件监视器。路径暂不存在不视为错误：
// 监视器会在文件出现时上报 CREATE（首次部署时配置文件可能晚于进程就绪）。
func NewFileWatcher(paths []string, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		paths:        append([]string(nil), paths...),
		pollInterval: time.Second,
		debounce:     200 * time.Millisecond,
		stopChan:     make(chan struct{}),
		events:       make(chan FileEvent, 64),
		lastModTimes: make(map[string]time.Time),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			w.logger.Warn("watched file does not exist yet, will report creation",
				zap.String("path", path))
		}
	}
	return w, nil
}

// OnChange 注册文件变化回调。回调在事件循环 goroutine 中执行，不得长时间阻塞。
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动事件循环。重复启动返回错误。
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("file watcher already running")
	}
	w.running = true

	for _, path := range w.paths {
		if info, err := os.Stat(path); err == nil {
			w.lastModTimes[path] = info.ModTime()
		}
	}

	go w.loop(ctx)

	w.logger.Info("file watcher started",
		zap.Strings("paths", w.paths),
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("debounce", w.debounce))
	return nil
}

// Stop 停止监视器。重复停止为空操作。
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	close(w.stopChan)
	w.running = false
	w.logger.Info("file watcher stopped")
	return nil
}

// IsRunning 报告监视器是否在运行。
func (w *FileWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Paths 返回受监视的路径副本。
func (w *FileWatcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.paths...)
}

// loop 是唯一的事件循环：轮询、防抖与派发都在这里串行完成，
// pending 与 lastModTimes 因此无需加锁。
func (w *FileWatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	pending := make(map[string]FileEvent)
	flush := time.NewTimer(w.debounce)
	if !flush.Stop() {
		<-flush.C
	}
	flushArmed := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return

		case <-ticker.C:
			w.pollOnce()

		case evt := <-w.events:
			// 同一路径窗口内只保留最后一次变化
			pending[evt.Path] = evt
			if flushArmed && !flush.Stop() {
				<-flush.C
			}
			flush.Reset(w.debounce)
			flushArmed = true

		case <-flush.C:
			flushArmed = false
			w.dispatch(pending)
			pending = make(map[string]FileEvent)
		}
	}
}

// pollOnce 比对每个路径的 mtime，把观测到的变化投入事件通道。
func (w *FileWatcher) pollOnce() {
	for _, path := range w.Paths() {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if _, tracked := w.lastModTimes[path]; tracked {
					delete(w.lastModTimes, path)
					w.emit(FileEvent{Path: path, Op: FileOpRemove, Timestamp: time.Now()})
				}
			}
			continue
		}

		last, tracked := w.lastModTimes[path]
		switch {
		case !tracked:
			w.lastModTimes[path] = info.ModTime()
			w.emit(FileEvent{Path: path, Op: FileOpCreate, Timestamp: time.Now()})
		case info.ModTime().After(last):
			w.lastModTimes[path] = info.ModTime()
			w.emit(FileEvent{Path: path, Op: FileOpWrite, Timestamp: time.Now()})
		}
	}
}

// emit 非阻塞投递：通道满时丢弃并记日志，下一轮轮询会再次观测到差异。
func (w *FileWatcher) emit(evt FileEvent) {
	select {
	case w.events <- evt:
	default:
		w.logger.Warn("file event dropped, channel full",
			zap.String("path", evt.Path),
			zap.String("op", evt.Op.String()))
	}
}

func (w *FileWatcher) dispatch(pending map[string]FileEvent) {
	if len(pending) == 0 {
		return
	}
	w.mu.RLock()
	callbacks := make([]func(FileEvent), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, evt := range pending {
		w.logger.Debug("dispatching file event",
			zap.String("path", evt.Path),
			zap.String("op", evt.Op.String()))
		for _, cb := range callbacks {
			cb(evt)
		}
	}
}
