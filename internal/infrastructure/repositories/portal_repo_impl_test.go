package repositories

import (
	"context"
	"sync"
	"testing"

	domainerrors "gatekeeper.backend/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestPortalRepository_GetOrCreateIsIdempotent(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewPortalRepository(client)
	ctx := context.Background()

	first, created, err := repo.GetOrCreate(ctx, -100, "aaaa1111")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "aaaa1111", first.Nonce)
	assert.False(t, first.IsGated())
	assert.False(t, first.IsBound())

	second, created, err := repo.GetOrCreate(ctx, -100, "bbbb2222")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "aaaa1111", second.Nonce)
}

func TestPortalRepository_ConcurrentGetOrCreateKeepsOneNonce(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewPortalRepository(client)
	ctx := context.Background()

	nonces := []string{"00000001", "00000002", "00000003", "00000004", "00000005"}
	var wg sync.WaitGroup
	results := make([]string, len(nonces))
	createdCount := make([]bool, len(nonces))
	for i, n := range nonces {
		wg.Add(1)
		go func(i int, n string) {
			defer wg.Done()
			p, created, err := repo.GetOrCreate(ctx, -7, n)
			require.NoError(t, err)
			results[i] = p.Nonce
			createdCount[i] = created
		}(i, n)
	}
	wg.Wait()

	winners := 0
	for i := range nonces {
		assert.Equal(t, results[0], results[i])
		if createdCount[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestPortalRepository_NonceLookup(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewPortalRepository(client)
	ctx := context.Background()

	ok, err := repo.ReserveNonce(ctx, "cafe0001", -1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.ReserveNonce(ctx, "cafe0001", -2)
	require.NoError(t, err)
	assert.False(t, ok, "nonce must be unique across portals")

	_, _, err = repo.GetOrCreate(ctx, -1, "cafe0001")
	require.NoError(t, err)

	portal, err := repo.GetByNonce(ctx, "cafe0001")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), portal.CommunityID)

	_, err = repo.GetByNonce(ctx, "deadbeef")
	assert.ErrorIs(t, err, domainerrors.ErrPortalNotFound)

	// A stale reservation pointing at a portal with another nonce is not a match.
	ok, err = repo.ReserveNonce(ctx, "stale000", -1)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = repo.GetByNonce(ctx, "stale000")
	assert.ErrorIs(t, err, domainerrors.ErrPortalNotFound)

	require.NoError(t, repo.ReleaseNonce(ctx, "stale000"))
	ok, err = repo.ReserveNonce(ctx, "stale000", -3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPortalRepository_SetFields(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewPortalRepository(client)
	ctx := context.Background()

	err := repo.SetAsset(ctx, -5, null.StringFrom("0xabc"))
	assert.ErrorIs(t, err, domainerrors.ErrPortalNotFound)

	_, _, err = repo.GetOrCreate(ctx, -5, "feed0005")
	require.NoError(t, err)

	require.NoError(t, repo.SetAsset(ctx, -5, null.StringFrom("0xabc")))
	require.NoError(t, repo.SetAmount(ctx, -5, null.Int64From(100000)))

	portal, err := repo.GetByCommunityID(ctx, -5)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", portal.RequiredAsset.String)
	assert.Equal(t, int64(100000), portal.MinimumAmount.Int64)
	assert.True(t, portal.IsGated())

	require.NoError(t, repo.SetAsset(ctx, -5, null.String{}))
	require.NoError(t, repo.SetAmount(ctx, -5, null.Int64{}))

	portal, err = repo.GetByCommunityID(ctx, -5)
	require.NoError(t, err)
	assert.False(t, portal.RequiredAsset.Valid)
	assert.False(t, portal.MinimumAmount.Valid)
	assert.Equal(t, "feed0005", portal.Nonce)
}

func TestPortalRepository_BindChatOnce(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewPortalRepository(client)
	ctx := context.Background()

	assert.ErrorIs(t, repo.BindChat(ctx, -9, -900), domainerrors.ErrPortalNotFound)

	_, _, err := repo.GetOrCreate(ctx, -9, "b1nd0009")
	require.NoError(t, err)

	require.NoError(t, repo.BindChat(ctx, -9, -900))
	assert.ErrorIs(t, repo.BindChat(ctx, -9, -901), domainerrors.ErrAlreadyBound)

	portal, err := repo.GetByCommunityID(ctx, -9)
	require.NoError(t, err)
	assert.Equal(t, int64(-900), portal.BoundChatID.Int64)
}

func TestPortalRepository_ListAndCorruptFields(t *testing.T) {
	client, srv := newTestRedis(t)
	repo := NewPortalRepository(client)
	ctx := context.Background()

	for i, n := range []string{"11111111", "22222222", "33333333"} {
		_, _, err := repo.GetOrCreate(ctx, int64(-(i + 1)), n)
		require.NoError(t, err)
	}
	_, err := srv.SAdd(portalSetKey, "-42", "not-a-number")
	require.NoError(t, err)

	portals, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, portals, 3)
	assert.Equal(t, int64(-3), portals[0].CommunityID)
	assert.Equal(t, int64(-1), portals[2].CommunityID)

	srv.HSet(portalKey(-1), portalFieldAmount, "lots")
	_, err = repo.GetByCommunityID(ctx, -1)
	assert.Error(t, err)
	_, err = repo.List(ctx)
	assert.Error(t, err)
}
