// Package db selects and opens the persistence backend named by
// STORE_DRIVER and exposes it through the core ports.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/empireo/brain/internal/core/ports"
	mongostore "github.com/empireo/brain/internal/infrastructure/db/mongo"
	pgstore "github.com/empireo/brain/internal/infrastructure/db/postgres"
	"github.com/empireo/brain/internal/pkg/config"
)

// Store bundles the repositories of one backend.
type Store struct {
	Driver     string
	Principals ports.PrincipalRepository
	Ledger     ports.RefreshTokenLedger
	Graph      ports.PermissionGraph
	Audit      ports.AuditSink

	ping  func(context.Context) error
	close func(context.Context) error
}

// Ping checks backend connectivity for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the backend connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}

// Open connects to the configured backend and brings its schema up to date:
// indexes for mongo, migrations for postgres.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, database, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return newMongoStore(client, database), nil

	case config.DriverPostgres:
		sqlDB, err := pgstore.Connect(ctx, pgstore.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return newPostgresStore(sqlDB), nil

	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}

func newMongoStore(client *mongo.Client, database *mongo.Database) *Store {
	return &Store{
		Driver:     config.DriverMongo,
		Principals: mongostore.NewPrincipalRepository(database),
		Ledger:     mongostore.NewRefreshTokenRepository(database),
		Graph:      mongostore.NewPermissionRepository(database),
		Audit:      mongostore.NewAuditRepository(database),
		ping:       func(ctx context.Context) error { return client.Ping(ctx, nil) },
		close:      client.Disconnect,
	}
}

func newPostgresStore(sqlDB *sql.DB) *Store {
	return &Store{
		Driver:     config.DriverPostgres,
		Principals: pgstore.NewPrincipalRepository(sqlDB),
		Ledger:     pgstore.NewRefreshTokenRepository(sqlDB),
		Graph:      pgstore.NewPermissionRepository(sqlDB),
		Audit:      pgstore.NewAuditRepository(sqlDB),
		ping:       sqlDB.PingContext,
		close:      func(context.Context) error { return sqlDB.Close() },
	}
}
