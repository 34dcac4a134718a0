package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinehub/internal/gateway"
	"cinehub/internal/models"
)

func TestWatchlist_AddIsUnique(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	svc := NewWatchlistService(gw, quietLogger())

	outcome, err := svc.Add(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, AddedToWatchlist, outcome)

	outcome, err = svc.Add(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, AlreadyInWatchlist, outcome)

	n, err := gw.Count(ctx, models.TableWatchlist, gateway.Filter{"user_id": "u1", "title_id": "t1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWatchlist_RemoveAbsentIsOK(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	svc := NewWatchlistService(gw, quietLogger())

	_, err := svc.Add(ctx, "u1", "t1")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "u1", "t1"))
	require.NoError(t, svc.Remove(ctx, "u1", "t1"))

	entries, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWatchlist_OtherFailuresSurface(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	gw.SetFailure(gateway.OpInsert, models.TableWatchlist, gateway.ErrUnavailable)
	svc := NewWatchlistService(gw, quietLogger())

	outcome, err := svc.Add(ctx, "u1", "t1")
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.Empty(t, outcome)

	_, err = svc.Add(ctx, "", "t1")
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestWatchlist_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	gw.Seed(models.TableWatchlist,
		gateway.Row{"user_id": "u1", "title_id": "old", "created_at": "2024-01-01T00:00:00Z"},
		gateway.Row{"user_id": "u1", "title_id": "new", "created_at": "2024-06-01T00:00:00Z"},
		gateway.Row{"user_id": "u2", "title_id": "other", "created_at": "2024-06-01T00:00:00Z"},
	)
	svc := NewWatchlistService(gw, quietLogger())

	entries, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].TitleID)
	assert.Equal(t, "old", entries[1].TitleID)
}

func TestLists_CreateValidatesName(t *testing.T) {
	ctx := context.Background()
	svc := NewListService(gateway.NewMemory(), quietLogger())

	_, err := svc.Create(ctx, "u1", NewList{Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyListName)

	list, err := svc.Create(ctx, "u1", NewList{Name: "  Weekend picks ", Description: " cozy "})
	require.NoError(t, err)
	assert.NotEmpty(t, list.ID)
	assert.Equal(t, "Weekend picks", list.Name)
	require.NotNil(t, list.Description)
	assert.Equal(t, "cozy", *list.Description)
	assert.False(t, list.IsPublic)
	assert.Equal(t, "u1", list.UserID)
}

func TestLists_DeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	svc := NewListService(gw, quietLogger())

	list, err := svc.Create(ctx, "u1", NewList{Name: "Noir"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", list.ID, "t1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "u1", list.ID, DeleteUnconfirmed), ErrDeleteNotConfirmed)
	lists, _ := svc.Lists(ctx, "u1")
	assert.Len(t, lists, 1)

	// only the owner can delete
	assert.ErrorIs(t, svc.Delete(ctx, "u2", list.ID, DeleteConfirmed), ErrListNotFound)

	require.NoError(t, svc.Delete(ctx, "u1", list.ID, DeleteConfirmed))
	lists, _ = svc.Lists(ctx, "u1")
	assert.Empty(t, lists)

	n, _ := gw.Count(ctx, models.TableListItems, gateway.Filter{"list_id": list.ID})
	assert.Zero(t, n)
}

func TestLists_AddItemPositionsAndDuplicates(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	svc := NewListService(gw, quietLogger())

	list, err := svc.Create(ctx, "u1", NewList{Name: "Queue"})
	require.NoError(t, err)

	for _, id := range []string{"t1", "t2"} {
		outcome, err := svc.AddItem(ctx, "u1", list.ID, id)
		require.NoError(t, err)
		assert.Equal(t, AddedToList, outcome)
	}
	outcome, err := svc.AddItem(ctx, "u1", list.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, AlreadyInList, outcome)

	items, err := svc.Items(ctx, "u1", list.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "t1", items[0].TitleID)
	assert.Equal(t, 1, items[0].Position)
	assert.Equal(t, "t2", items[1].TitleID)
	assert.Equal(t, 2, items[1].Position)

	require.NoError(t, svc.RemoveItem(ctx, "u1", list.ID, "t1"))
	require.NoError(t, svc.RemoveItem(ctx, "u1", list.ID, "t1"))
	items, _ = svc.Items(ctx, "u1", list.ID)
	assert.Len(t, items, 1)
}

func TestLists_PrivacyAndOwnership(t *testing.T) {
	ctx := context.Background()
	svc := NewListService(gateway.NewMemory(), quietLogger())

	private, err := svc.Create(ctx, "u1", NewList{Name: "Private"})
	require.NoError(t, err)
	public, err := svc.Create(ctx, "u1", NewList{Name: "Public", IsPublic: true})
	require.NoError(t, err)

	_, err = svc.Items(ctx, "u2", private.ID)
	assert.ErrorIs(t, err, ErrListNotFound)
	_, err = svc.Items(ctx, "u2", public.ID)
	assert.NoError(t, err)

	_, err = svc.AddItem(ctx, "u2", public.ID, "t1")
	assert.ErrorIs(t, err, ErrListNotFound)
	_, err = svc.Items(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestStats_CountsTables(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	gw.Seed(models.TableProfiles, gateway.Row{"id": "u1"}, gateway.Row{"id": "u2"})
	gw.Seed(models.TableTitles, gateway.Row{"id": "t1"}, gateway.Row{"id": "t2"}, gateway.Row{"id": "t3"})
	gw.Seed(models.TableRatings, gateway.Row{"user_id": "u1", "title_id": "t1", "rating": 7})

	stats, err := NewStatsService(gw).Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Users: 2, Titles: 3, Ratings: 1}, stats)

	boom := errors.New("boom")
	gw.SetFailure(gateway.OpCount, models.TableRatings, boom)
	_, err = NewStatsService(gw).Stats(ctx)
	assert.ErrorIs(t, err, boom)
}
