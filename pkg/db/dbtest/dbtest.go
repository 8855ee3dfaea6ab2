// Package dbtest opens throwaway sqlite databases with the application schema.
package dbtest

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/migrate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns an in-memory database holding the users, items and notifications
// tables. The pool is pinned to one connection because every sqlite memory
// connection is a separate database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

// SeedUser inserts a verified user with every notification channel enabled.
func SeedUser(t testing.TB, conn *gorm.DB, mutate ...func(*models.User)) models.User {
	t.Helper()
	user := models.User{
		ID:                 uuid.New(),
		Email:              uuid.NewString()[:8] + "@example.com",
		Name:               "Test Owner",
		IsVerified:         true,
		EmailNotifications: true,
		InAppNotifications: true,
	}
	for _, fn := range mutate {
		fn(&user)
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// SeedItem inserts an item owned by userID.
func SeedItem(t testing.TB, conn *gorm.DB, userID uuid.UUID, mutate ...func(*models.Item)) models.Item {
	t.Helper()
	item := models.Item{
		ID:     uuid.New(),
		UserID: userID,
		Name:   "Milk",
		Unit:   "pcs",
	}
	for _, fn := range mutate {
		fn(&item)
	}
	require.NoError(t, conn.Create(&item).Error)
	return item
}

// Date builds a calendar day value.
func Date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}
