//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pastportals/backend/internal/store"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "pastportals",
			"POSTGRES_PASSWORD": "pastportals",
			"POSTGRES_DB":       "pastportals",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	return pg, fmt.Sprintf("postgres://pastportals:pastportals@%s:%s/pastportals?sslmode=disable", host, port.Port())
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	cwd, _ := os.Getwd()
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(cwd, "migrations")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return "file://" + candidate
		}
		cwd = filepath.Dir(cwd)
	}
	t.Fatalf("could not locate migrations directory from test cwd")
	return ""
}

func TestHistoryAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	pg, dsn := startPostgres(t, ctx)
	defer func() { _ = pg.Terminate(ctx) }()

	if err := store.Migrate(findMigrationsDir(t), dsn, "up", 0); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("NewWithDSN: %v", err)
	}
	defer st.Close()

	for _, year := range []int{1857, 1947} {
		body, _ := json.Marshal(map[string]any{"year": fmt.Sprint(year)})
		if err := st.RecordYearLookup(ctx, store.HistoryRecord{Year: year, TimelineSize: 1, Summary: body}); err != nil {
			t.Fatalf("RecordYearLookup(%d): %v", year, err)
		}
	}
	recs, err := st.RecentYearLookups(ctx, 10)
	if err != nil {
		t.Fatalf("RecentYearLookups: %v", err)
	}
	if len(recs) != 2 || recs[0].Year != 1947 {
		t.Fatalf("unexpected history: %+v", recs)
	}

	if err := store.Migrate(findMigrationsDir(t), dsn, "down", 0); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
}
