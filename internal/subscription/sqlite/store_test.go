package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsub/subsync/internal/subscription"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "subscriptions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("  ")
	assert.Error(t, err)
}

func TestStore_InsertAndGetByID(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, &subscription.Subscription{
		Name:         "The Wire",
		Year:         "2002",
		Type:         "电视剧",
		TMDBID:       1438,
		DoubanID:     "1442705",
		Season:       1,
		TotalEpisode: 13,
		StartEpisode: 1,
	})
	require.NoError(t, err)
	require.Positive(t, id)

	sub, err := store.GetByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, sub.ID)
	assert.Equal(t, "The Wire", sub.Name)
	assert.Equal(t, "2002", sub.Year)
	assert.Equal(t, "电视剧", sub.Type)
	assert.Equal(t, int64(1438), sub.TMDBID)
	assert.Equal(t, "1442705", sub.DoubanID)
	assert.Equal(t, 1, sub.Season)
	assert.Equal(t, 13, sub.TotalEpisode)
	assert.Equal(t, 1, sub.StartEpisode)
}

func TestStore_GetByIDNotFound(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	_, err := store.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, subscription.ErrNotFound)
}

func TestStore_ListEmpty(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	subs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestStore_ListReturnsAllInInsertionOrder(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, &subscription.Subscription{Name: "Heat", Type: "电影", TMDBID: 949})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &subscription.Subscription{Name: "Severance", Type: "TV", TMDBID: 95396, Season: 2})
	require.NoError(t, err)

	subs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, "Heat", subs[0].Name)
	assert.Equal(t, "Severance", subs[1].Name)
	assert.Equal(t, 2, subs[1].Season)
}

func TestStore_NullColumnsScanToZeroValues(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `INSERT INTO subscribe (name, type) VALUES ('Oldboy', '电影')`)
	require.NoError(t, err)

	subs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	assert.Empty(t, subs[0].Year)
	assert.Zero(t, subs[0].TMDBID)
	assert.Empty(t, subs[0].DoubanID)
	assert.Zero(t, subs[0].Season)
}
