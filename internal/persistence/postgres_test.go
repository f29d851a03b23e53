package persistence

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/goldvault/support-messaging/internal/config"
)

func TestNewPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if pg.PoolHandle() != nil {
		t.Fatalf("expected nil pool when no DSN is configured")
	}
	// The readiness probe pings this handle; it must report unready
	// rather than panic on the missing pool.
	if err := pg.Ping(context.Background()); err == nil {
		t.Fatalf("ping must fail without a pool")
	}
	pg.Close()
}

func TestPostgresPingNilReceiver(t *testing.T) {
	var pg *Postgres
	if err := pg.Ping(context.Background()); err == nil {
		t.Fatalf("nil receiver ping must return an error")
	}
}
