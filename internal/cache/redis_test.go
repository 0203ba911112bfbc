package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipfeed/internal/cache"
)

type probe struct {
	Name string `json:"name"`
}

func newMockStore(t *testing.T) (*cache.RedisStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return cache.NewRedisStore(db, "feedsvc"), mock
}

func TestRedisStore_Get_HitUnmarshalsIntoDest(t *testing.T) {
	store, mock := newMockStore(t)
	data, err := json.Marshal(probe{Name: "trending"})
	require.NoError(t, err)

	mock.ExpectGet("feedsvc:trending:24h").SetVal(string(data))

	var out probe
	err = store.Get(context.Background(), "trending:24h", &out)
	require.NoError(t, err)
	assert.Equal(t, "trending", out.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Get_MissReturnsErrMiss(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectGet("feedsvc:trending:24h").RedisNil()

	var out probe
	err := store.Get(context.Background(), "trending:24h", &out)
	assert.ErrorIs(t, err, cache.ErrMiss)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Set_MarshalsAndWritesWithTTL(t *testing.T) {
	store, mock := newMockStore(t)
	data, err := json.Marshal(probe{Name: "featured"})
	require.NoError(t, err)

	mock.ExpectSet("feedsvc:featured", data, cache.ShortTTL).SetVal("OK")

	err = store.Set(context.Background(), "featured", probe{Name: "featured"}, cache.ShortTTL)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetWithTags_RegistersEveryTag(t *testing.T) {
	store, mock := newMockStore(t)
	data, err := json.Marshal(probe{Name: "feed-page"})
	require.NoError(t, err)

	mock.ExpectSet("feedsvc:feed:u1:abc", data, cache.ShortTTL).SetVal("OK")
	mock.ExpectSAdd("feedsvc:tag:user:u1", "feedsvc:feed:u1:abc").SetVal(1)
	mock.ExpectExpire("feedsvc:tag:user:u1", cache.ShortTTL+5*time.Minute).SetVal(true)
	mock.ExpectSAdd("feedsvc:tag:feed", "feedsvc:feed:u1:abc").SetVal(1)
	mock.ExpectExpire("feedsvc:tag:feed", cache.ShortTTL+5*time.Minute).SetVal(true)

	err = store.SetWithTags(context.Background(), "feed:u1:abc", probe{Name: "feed-page"}, cache.ShortTTL, cache.TagUser("u1"), cache.TagFeed)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Delete_NoOpOnEmptyKeys(t *testing.T) {
	store, mock := newMockStore(t)
	err := store.Delete(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Delete_FormatsEachKeyWithPrefix(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectDel("feedsvc:featured", "feedsvc:editors_picks").SetVal(2)

	err := store.Delete(context.Background(), "featured", "editors_picks")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_InvalidateByTags_DeletesMembersThenTagSet(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectSMembers("feedsvc:tag:title:t1").SetVal([]string{"feedsvc:similar:t1", "feedsvc:feed:u1:abc"})
	mock.ExpectDel("feedsvc:similar:t1", "feedsvc:feed:u1:abc").SetVal(2)
	mock.ExpectDel("feedsvc:tag:title:t1").SetVal(1)

	err := store.InvalidateByTags(context.Background(), cache.TagTitle("t1"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_InvalidateByTags_SkipsMemberDeleteWhenTagSetEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectSMembers("feedsvc:tag:title:unused").SetVal([]string{})
	mock.ExpectDel("feedsvc:tag:title:unused").SetVal(0)

	err := store.InvalidateByTags(context.Background(), cache.TagTitle("unused"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
