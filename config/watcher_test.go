package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// startWatcher 启动监视器并收集回调事件。
func startWatcher(t *testing.T, w *FileWatcher) func() []FileEvent {
	t.Helper()

	var mu sync.Mutex
	var events []FileEvent
	w.OnChange(func(evt FileEvent) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	return func() []FileEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]FileEvent{}, events...)
	}
}

func TestFileWatcher_Defaults(t *testing.T) {
	f := writeTempFile(t, "speechflow.yaml", "key: val")

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)

	assert.Equal(t, []string{f}, w.Paths())
	assert.False(t, w.IsRunning())
	assert.Equal(t, time.Second, w.pollInterval)
	assert.Equal(t, 200*time.Millisecond, w.debounce)
}

func TestFileWatcher_Options(t *testing.T) {
	f := writeTempFile(t, "speechflow.yaml", "key: val")

	w, err := NewFileWatcher([]string{f},
		WithDebounceDelay(500*time.Millisecond),
		WithPollInterval(100*time.Millisecond),
		WithWatcherLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, w.debounce)
	assert.Equal(t, 100*time.Millisecond, w.pollInterval)
}

func TestFileWatcher_MissingPathAllowed(t *testing.T) {
	// 首次部署时配置文件可能晚于进程出现：不存在只告警，不报错
	w, err := NewFileWatcher([]string{"/nonexistent/speechflow.yaml"})
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestFileWatcher_Lifecycle(t *testing.T) {
	f := writeTempFile(t, "speechflow.yaml", "key: val")

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	assert.False(t, w.IsRunning())
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())

	err = w.Start(ctx)
	assert.Error(t, err, "重复启动必须报错")
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop(), "重复停止是空操作")
}

func TestFileWatcher_DetectsWrite(t *testing.T) {
	f := writeTempFile(t, "speechflow.yaml", "v1")

	w, err := NewFileWatcher([]string{f},
		WithPollInterval(20*time.Millisecond),
		WithDebounceDelay(30*time.Millisecond))
	require.NoError(t, err)
	collect := startWatcher(t, w)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(f, []byte("v2"), 0644))

	require.Eventually(t, func() bool {
		return len(collect()) >= 1
	}, 2*time.Second, 20*time.Millisecond, "修改文件后应收到事件")

	events := collect()
	assert.Equal(t, f, events[0].Path)
	assert.Equal(t, FileOpWrite, events[0].Op)
}

func TestFileWatcher_DetectsCreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "late.yaml")

	w, err := NewFileWatcher([]string{f},
		WithPollInterval(20*time.Millisecond),
		WithDebounceDelay(30*time.Millisecond))
	require.NoError(t, err)
	collect := startWatcher(t, w)

	require.NoError(t, os.WriteFile(f, []byte("v1"), 0644))
	require.Eventually(t, func() bool {
		evts := collect()
		return len(evts) >= 1 && evts[0].Op == FileOpCreate
	}, 2*time.Second, 20*time.Millisecond, "文件出现后应收到 CREATE")

	require.NoError(t, os.Remove(f))
	require.Eventually(t, func() bool {
		evts := collect()
		return len(evts) >= 2 && evts[len(evts)-1].Op == FileOpRemove
	}, 2*time.Second, 20*time.Millisecond, "文件删除后应收到 REMOVE")
}

func TestFileWatcher_DebounceCoalescesSamePath(t *testing.T) {
	f := writeTempFile(t, "speechflow.yaml", "v0")

	// 轮询间隔拉长，事件由测试直接注入，只验证防抖合并
	w, err := NewFileWatcher([]string{f},
		WithPollInterval(time.Hour),
		WithDebounceDelay(50*time.Millisecond))
	require.NoError(t, err)
	collect := startWatcher(t, w)

	for i := 0; i < 5; i++ {
		w.events <- FileEvent{Path: f, Op: FileOpWrite, Timestamp: time.Now()}
	}

	require.Eventually(t, func() bool {
		return len(collect()) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// 留出窗口确认不会再派发第二次
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, len(collect()), "同一路径窗口内的多次变化必须合并为一次回调")
}

func TestFileWatcher_ContextCancelStopsLoop(t *testing.T) {
	f := writeTempFile(t, "speechflow.yaml", "v1")

	w, err := NewFileWatcher([]string{f}, WithPollInterval(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	cancel()
	time.Sleep(100 * time.Millisecond)

	// 取消 context 终止事件循环；running 标志由显式 Stop 维护
	assert.True(t, w.IsRunning())
	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}
