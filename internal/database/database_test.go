package database

import (
	"bytes"
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/climb-review-api/internal/models"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	db, err := Connect("sqlite", "file:database_test?mode=memory&cache=shared")
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.True(t, db.Migrator().HasTable(&models.ReviewChain{}))
	require.True(t, db.Migrator().HasTable(&models.ReviewObligation{}))
	require.True(t, db.Migrator().HasTable(&models.Notification{}))
	require.True(t, db.Migrator().HasIndex(&models.ReviewChain{}, "ActivityID"))
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("mysql", "dsn")
	require.Error(t, err)

	_, err = Connect("postgres", "")
	require.Error(t, err)
}

func TestConnectRedisAndPing(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis("redis://" + server.Addr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, RedisPinger{Client: client}.PingContext(context.Background()))

	_, err = ConnectRedis("")
	require.Error(t, err)
}

func TestGormConfigSkipsRecordNotFoundLogs(t *testing.T) {
	var out bytes.Buffer
	db, err := gorm.Open(sqlite.Open("file:gorm_logger_test?mode=memory&cache=shared"), gormConfig(&out))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	var chain models.ReviewChain
	err = db.Where("activity_id = ?", "missing").First(&chain).Error
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	require.NotContains(t, out.String(), "record not found")

	err = db.Exec("SELECT * FROM no_such_table").Error
	require.Error(t, err)
	require.Contains(t, out.String(), "no_such_table", "real failures are still logged")
}
