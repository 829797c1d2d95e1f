package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/service"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/internal/identity/store/drivers/postgres"
	"github.com/aussiebroadwan/identity/internal/identity/store/sqlstore"
	"github.com/aussiebroadwan/identity/internal/identity/store/storetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres store tests need docker; skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "identity",
			"POSTGRES_PASSWORD": "identity",
			"POSTGRES_DB":       "identity",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://identity:identity@%s:%s/identity?sslmode=disable", host, port.Port())
}

func TestConformance(t *testing.T) {
	dsn := startPostgres(t)

	// Each subtest gets a clean schema: migrate down then up.
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := postgres.NewStore(t.Context(), dsn, postgres.Options{MaxOpenConns: 8})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		require.NoError(t, s.ApplyMigrations())
		require.NoError(t, s.Migrate(sqlstore.Down))
		require.NoError(t, s.ApplyMigrations())
		return s
	})
}

func TestLockUserSerializes(t *testing.T) {
	dsn := startPostgres(t)
	ctx := t.Context()

	s, err := postgres.NewStore(ctx, dsn, postgres.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	first, err := s.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, first.LockUser(ctx, "u1"))

	acquired := make(chan struct{})
	go func() {
		_ = s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.LockUser(ctx, "u1"); err != nil {
				return err
			}
			close(acquired)
			return nil
		})
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired the lock while the first held it")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, first.Commit())

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("lock was not released on commit")
	}
}

// Concurrent logins for one user race on a pooled connection each, so only
// the advisory lock keeps them to one open session and one live token.
func TestConcurrentLoginsKeepOneSessionAndToken(t *testing.T) {
	dsn := startPostgres(t)
	ctx := t.Context()

	s, err := postgres.NewStore(ctx, dsn, postgres.Options{MaxOpenConns: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	bob := storetest.MustCreateUser(t, s, "bob", time.Now().UTC())
	sessions := &service.SessionService{Store: s}
	refresh := &service.RefreshTokenService{Store: s}

	const logins = 8
	var wg sync.WaitGroup
	errs := make(chan error, 2*logins)
	for range logins {
		wg.Go(func() {
			_, err := sessions.StartSession(ctx, bob.ID)
			errs <- err
			_, err = refresh.Create(ctx, bob.ID)
			errs <- err
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.Sessions().ListUserSessions(ctx, bob.ID, 0, 100)
	require.NoError(t, err)
	require.Len(t, all, logins)
	open := 0
	for _, sess := range all {
		if sess.Open() {
			open++
		}
	}
	require.Equal(t, 1, open)

	tokens, err := s.RefreshTokens().ListUserRefreshTokens(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, tokens, logins)
	live := 0
	for _, rt := range tokens {
		if rt.Active(time.Now()) {
			live++
		}
	}
	require.Equal(t, 1, live)
}
