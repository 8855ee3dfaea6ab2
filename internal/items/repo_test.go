package items

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/db/dbtest"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_ListDigestCandidates(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	reported := testNow.Add(-time.Hour)

	soon := dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) {
		i.ExpiryDate = dayOffset(3)
		i.Status = enums.ItemStatusExpiringSoon
	})
	unreported := dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) {
		i.ExpiryDate = dayOffset(-1)
		i.Status = enums.ItemStatusExpired
	})
	dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) {
		i.ExpiryDate = dayOffset(-2)
		i.Status = enums.ItemStatusExpired
		i.ExpiryReportedAt = &reported
	})
	dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) { i.Name = "Undated" })
	dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) {
		i.ExpiryDate = dayOffset(5)
		i.RemoteStatus = enums.RemoteStatusInactive
	})

	rows, err := repo.ListDigestCandidates(ctx)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{soon.ID, unreported.ID}, ids)

	require.NoError(t, repo.MarkExpiryReported(ctx, []uuid.UUID{unreported.ID}, testNow))
	rows, err = repo.ListDigestCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, soon.ID, rows[0].ID)
}

func TestRepository_ListExpiredBefore(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	user := dbtest.SeedUser(t, conn)
	old := testNow.Add(-25 * time.Hour)
	recent := testNow.Add(-2 * time.Hour)

	stale := dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) {
		i.Status = enums.ItemStatusExpired
		i.StatusChangedAt = &old
	})
	dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) {
		i.Status = enums.ItemStatusExpired
		i.StatusChangedAt = &recent
	})
	dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) {
		i.Status = enums.ItemStatusActive
		i.StatusChangedAt = &old
	})

	rows, err := repo.ListExpiredBefore(context.Background(), testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

func TestRepository_ListForSweepPagesByID(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	user := dbtest.SeedUser(t, conn)
	for i := 0; i < 5; i++ {
		dbtest.SeedItem(t, conn, user.ID)
	}

	seen := map[uuid.UUID]bool{}
	after := uuid.Nil
	for {
		rows, err := repo.ListForSweep(context.Background(), after, 2)
		require.NoError(t, err)
		for _, row := range rows {
			assert.False(t, seen[row.ID])
			seen[row.ID] = true
		}
		if len(rows) < 2 {
			break
		}
		after = rows[len(rows)-1].ID
	}
	assert.Len(t, seen, 5)
}

func TestRepository_LinkedAndRemoteStatus(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn)
	external := "zoho-5"
	linked := dbtest.SeedItem(t, conn, user.ID, func(i *models.Item) { i.ExternalID = &external })
	dbtest.SeedItem(t, conn, user.ID)

	rows, err := repo.ListLinkedByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkRemoteStatus(ctx, linked.ID, enums.RemoteStatusInactive))
	found, err := repo.FindByExternalID(ctx, external)
	require.NoError(t, err)
	assert.Equal(t, enums.RemoteStatusInactive, found.RemoteStatus)
}
