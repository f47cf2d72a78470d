package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techpack-studio/internal/common/database"
	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/models"
)

func sampleFiles() models.TechFiles {
	return models.TechFiles{
		Category:  &models.CategoryData{Category: "bags", Confidence: 0.9},
		BaseViews: []models.BaseViewData{{RevisionID: "r-1", ViewType: "front", ImageURL: "https://img/front.png"}},
		Components: []models.ComponentData{
			{ID: "c-1", ComponentName: "strap", LoadingState: models.LoadingStateLoaded},
		},
		AssemblyView: &models.AssemblyViewData{ID: "a-1", LoadingState: models.LoadingStateLoaded},
	}
}

func newMiniredisCache(t *testing.T, ttl time.Duration) (*TechFileCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(database.NewRedisFromClient(client), ttl, logger.NewTestLogger(t)), mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "techpack:p-1:r-9", Key("p-1", "r-9"))
}

func TestTechFileCache_RoundTrip(t *testing.T) {
	c, mr := newMiniredisCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "p-1", "r-1", sampleFiles()))
	assert.True(t, mr.Exists("techpack:p-1:r-1"))
	assert.Equal(t, time.Hour, mr.TTL("techpack:p-1:r-1"))

	files, ok, err := c.Get(ctx, "p-1", "r-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bags", files.Category.Category)
	assert.Equal(t, "strap", files.Components[0].ComponentName)
	assert.Equal(t, "a-1", files.AssemblyView.ID)

	_, ok, err = c.Get(ctx, "p-1", "r-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTechFileCache_Expiry(t *testing.T) {
	c, mr := newMiniredisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "p-1", "r-1", sampleFiles()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "p-1", "r-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTechFileCache_SkipsEmptyFiles(t *testing.T) {
	c, mr := newMiniredisCache(t, time.Hour)

	require.NoError(t, c.Put(context.Background(), "p-1", "r-1", models.TechFiles{Category: &models.CategoryData{Category: "bags"}}))
	assert.False(t, mr.Exists("techpack:p-1:r-1"))
}

func TestTechFileCache_Invalidate(t *testing.T) {
	c, mr := newMiniredisCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "p-1", "r-1", sampleFiles()))
	require.NoError(t, c.Invalidate(ctx, "p-1", "r-1"))
	assert.False(t, mr.Exists("techpack:p-1:r-1"))
}

func TestTechFileCache_NilIsAlwaysMiss(t *testing.T) {
	var c *TechFileCache
	ctx := context.Background()

	files, ok, err := c.Get(ctx, "p-1", "r-1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, files.HasData())
	assert.NoError(t, c.Put(ctx, "p-1", "r-1", sampleFiles()))
	assert.NoError(t, c.Invalidate(ctx, "p-1", "r-1"))
}

func TestTechFileCache_RedisErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("get error surfaces", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(database.NewRedisFromClient(client), time.Hour, logger.NewTestLogger(t))

		mock.ExpectGet("techpack:p-1:r-1").SetErr(errors.New("connection refused"))

		_, ok, err := c.Get(ctx, "p-1", "r-1")
		require.Error(t, err)
		assert.False(t, ok)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt value surfaces", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(database.NewRedisFromClient(client), time.Hour, logger.NewTestLogger(t))

		mock.ExpectGet("techpack:p-1:r-1").SetVal("{not json")

		_, _, err := c.Get(ctx, "p-1", "r-1")
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set error surfaces", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		c := New(database.NewRedisFromClient(client), 30*time.Second, logger.NewTestLogger(t))

		payload, err := json.Marshal(sampleFiles())
		require.NoError(t, err)
		mock.ExpectSet("techpack:p-1:r-1", payload, 30*time.Second).SetErr(errors.New("OOM"))

		err = c.Put(ctx, "p-1", "r-1", sampleFiles())
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
