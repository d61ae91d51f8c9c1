package database

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := config.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, Migrate(db, nil))
	return db
}

func TestSeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	admin := config.AdminConfig{Username: "boss", Password: "s3cret-pass"}

	require.NoError(t, Seed(db, admin, nil))
	require.NoError(t, Seed(db, admin, nil))

	var items []models.MenuItem
	require.NoError(t, db.Order("id ASC").Find(&items).Error)
	require.Len(t, items, len(StarterMenu))
	assert.Equal(t, "Chicken Burger", items[0].Name)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("10.49")))
	assert.True(t, items[2].Price.Equal(decimal.RequireFromString("3.49")))

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("s3cret-pass")))
}

func TestSeedSkipsAdminWithoutCredentials(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Seed(db, config.AdminConfig{Username: "boss"}, nil))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}
