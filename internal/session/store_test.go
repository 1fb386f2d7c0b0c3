package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/launchkit-dev/launchkit/internal/database"
	"github.com/launchkit-dev/launchkit/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	email := name + "@example.com"
	user := &models.User{Name: name, Email: &email}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestStore_CreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	user := createUser(t, db, "ada")

	created, err := store.Create(ctx, nil, user, time.Hour, Metadata{UserAgent: "test"})
	require.NoError(t, err)
	assert.Len(t, created.Token, 64)
	assert.Equal(t, user.ID, created.UserID)
	assert.Equal(t, "ada", created.UserName)

	found, err := store.Lookup(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.Token, found.Token)
	assert.Equal(t, user.ID, found.UserID)
	assert.Equal(t, "ada@example.com", found.UserEmail)
	assert.WithinDuration(t, created.ExpiresAt, found.ExpiresAt, time.Second)
}

func TestStore_LookupMissing(t *testing.T) {
	store := NewStore(newTestDB(t))

	_, err := store.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestStore_LookupUnavailable(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	require.NoError(t, database.Close(db))

	_, err := store.Lookup(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestStore_Delete(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	user := createUser(t, db, "ada")

	created, err := store.Create(ctx, nil, user, time.Hour, Metadata{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.Token))
	_, err = store.Lookup(ctx, created.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// Idempotent
	assert.NoError(t, store.Delete(ctx, created.Token))
}

func TestStore_PurgeExpired(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	user := createUser(t, db, "ada")

	live, err := store.Create(ctx, nil, user, time.Hour, Metadata{})
	require.NoError(t, err)
	_, err = store.Create(ctx, nil, user, time.Millisecond, Metadata{})
	require.NoError(t, err)

	purged, err := store.PurgeExpired(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.Lookup(ctx, live.Token)
	assert.NoError(t, err)
}

func TestStore_DeleteForUser(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	ada := createUser(t, db, "ada")
	bob := createUser(t, db, "bob")

	for i := 0; i < 2; i++ {
		_, err := store.Create(ctx, nil, ada, time.Hour, Metadata{})
		require.NoError(t, err)
	}
	other, err := store.Create(ctx, nil, bob, time.Hour, Metadata{})
	require.NoError(t, err)

	n, err := store.DeleteForUser(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.Lookup(ctx, other.Token)
	assert.NoError(t, err)
}
