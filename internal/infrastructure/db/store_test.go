package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empireo/brain/internal/pkg/config"
)

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}
	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown driver")
}

func TestPostgresStore_PingAndClose(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	store := newPostgresStore(sqlDB)
	assert.Equal(t, config.DriverPostgres, store.Driver)
	assert.NotNil(t, store.Principals)
	assert.NotNil(t, store.Ledger)
	assert.NotNil(t, store.Graph)
	assert.NotNil(t, store.Audit)

	mock.ExpectPing()
	mock.ExpectClose()
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
