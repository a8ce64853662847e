package database

import (
	"testing"

	"snapfeed/internal/config"
	"snapfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "snapfeed"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=snapfeed sslmode=disable", PostgresDSN(cfg))

	cfg.DBSSLMode = "require"
	assert.Contains(t, PostgresDSN(cfg), "sslmode=require")
}

func TestConnect_SQLiteMigrates(t *testing.T) {
	cfg := &config.Config{Env: "test", StoreDriver: config.StoreSQLite, SQLitePath: ":memory:"}

	db, err := Connect(cfg)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&models.Post{}))
	assert.True(t, db.Migrator().HasTable(&models.Comment{}))
	assert.True(t, db.Migrator().HasIndex(&models.Comment{}, "idx_comments_post_created"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_RejectsDocumentStore(t *testing.T) {
	_, err := Connect(&config.Config{StoreDriver: config.StoreFirestore})
	assert.Error(t, err)
}
