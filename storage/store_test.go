package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 各后端共用的契约测试
func runStoreContract(t *testing.T, store ObjectStore) {
	t.Helper()
	ctx := context.Background()

	// 不存在的键
	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// 写入后读回
	require.NoError(t, store.Put(ctx, "k1", []byte("audio-bytes")))
	data, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)

	ok, err = store.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	// 同 key 覆盖写以后写为准
	require.NoError(t, store.Put(ctx, "k1", []byte("v2")))
	data, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	// 删除后不可见；重复删除不算错误
	require.NoError(t, store.Delete(ctx, "k1"))
	_, err = store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "k1"))
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestFileStore_Contract(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	runStoreContract(t, store)
}

func TestRedisStore_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, "")
	defer store.Close()

	runStoreContract(t, store)
}

func TestMemoryStore_PutCopiesData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	src := []byte("original")
	require.NoError(t, store.Put(ctx, "k", src))
	src[0] = 'X'

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data, "存储不应受调用方切片修改影响")
}

func TestMemoryStore_ClosedRejects(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	err := store.Put(context.Background(), "k", []byte("v"))
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestFileStore_EmptyBaseDirRejected(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestNewObjectStore_Factory(t *testing.T) {
	store, err := NewObjectStore(Config{Type: StoreTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewObjectStore(Config{Type: StoreTypeFile, BaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = NewObjectStore(Config{Type: "cassandra"})
	assert.Error(t, err)
}
