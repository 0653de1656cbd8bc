package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"statsdb/database"
	"statsdb/database/dbtest"
	"statsdb/models"
)

func newMachineRepo(t *testing.T, db *database.Database) *database.MachineConfigRepository {

	t.Helper()

	repo, err := database.NewMachineConfigRepository(db, 100)

	require.NoError(t, err)

	t.Cleanup(repo.Close)

	return repo
}

func TestResolveCreatesOnce(t *testing.T) {

	db := dbtest.New(t)

	repo := newMachineRepo(t, db)

	ctx := context.Background()

	info := models.UserInfo{

		Fingerprint: "abc123",

		OS: "Windows",

		Version: "7.2",

		Memory: "2.2 GB",

		VideoMemory: "512 MB",
	}

	first, created, err := repo.Resolve(ctx, info, "10.0.0.1")

	require.NoError(t, err)

	assert.True(t, created)

	assert.Equal(t, int64(2362232012), first.Memory)

	assert.Equal(t, int64(512<<20), first.VideoMemory)

	assert.Zero(t, first.DiskSpace)

	assert.Equal(t, "10.0.0.1", first.IP)

	second, created, err := repo.Resolve(ctx, info, "10.0.0.2")

	require.NoError(t, err)

	assert.False(t, created)

	assert.Equal(t, first.ID, second.ID)

	// the address is only captured on first sighting
	assert.Equal(t, "10.0.0.1", second.IP)

	var count int64

	require.NoError(t, db.Model(&models.MachineConfig{}).Count(&count).Error)

	assert.Equal(t, int64(1), count)
}

func TestResolveDistinctFingerprints(t *testing.T) {

	repo := newMachineRepo(t, dbtest.New(t))

	ctx := context.Background()

	a, _, err := repo.Resolve(ctx, models.UserInfo{Fingerprint: "a"}, "")

	require.NoError(t, err)

	b, _, err := repo.Resolve(ctx, models.UserInfo{Fingerprint: "b"}, "")

	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)

	again, _, err := repo.Resolve(ctx, models.UserInfo{Fingerprint: "b"}, "")

	require.NoError(t, err)

	assert.Equal(t, b.ID, again.ID)
}

func TestResolveRejectsBadSizes(t *testing.T) {

	repo := newMachineRepo(t, dbtest.New(t))

	_, _, err := repo.Resolve(context.Background(), models.UserInfo{Fingerprint: "x", DiskSpace: "lots GB"}, "")

	var fieldErr *models.FieldError

	require.True(t, errors.As(err, &fieldErr))

	assert.Equal(t, "disk_space", fieldErr.Field)
}

func TestResolveRequiresFingerprint(t *testing.T) {

	repo := newMachineRepo(t, dbtest.New(t))

	_, _, err := repo.Resolve(context.Background(), models.UserInfo{OS: "Linux"}, "")

	assert.ErrorContains(t, err, "machine_config_hash")
}

func TestResolveFindsRowCreatedElsewhere(t *testing.T) {

	db := dbtest.New(t)

	ctx := context.Background()

	// a row created by another process
	require.NoError(t, db.Create(&models.MachineConfig{Fingerprint: "race"}).Error)

	repo := newMachineRepo(t, db)

	mc, created, err := repo.Resolve(ctx, models.UserInfo{Fingerprint: "race"}, "")

	require.NoError(t, err)

	assert.False(t, created)

	assert.Equal(t, "race", mc.Fingerprint)
}

func TestConcurrentFirstSightingsConverge(t *testing.T) {

	db := dbtest.New(t)

	repo := newMachineRepo(t, db)

	const callers = 8

	ids := make([]uint, callers)

	created := make([]bool, callers)

	var g errgroup.Group

	for i := 0; i < callers; i++ {

		g.Go(func() error {

			mc, isNew, err := repo.Resolve(context.Background(), models.UserInfo{Fingerprint: "shared", OS: "Linux"}, "")

			if err != nil {
				return err
			}

			ids[i], created[i] = mc.ID, isNew

			return nil
		})
	}

	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	creators := 0

	for _, isNew := range created {

		if isNew {
			creators++
		}
	}

	assert.Equal(t, 1, creators)

	var rows int64

	require.NoError(t, db.Model(&models.MachineConfig{}).Where("fingerprint = ?", "shared").Count(&rows).Error)

	assert.Equal(t, int64(1), rows)
}
