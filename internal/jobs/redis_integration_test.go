//go:build integration

package jobs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pastportals/backend/internal/jobs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type okGenerator struct{}

func (okGenerator) Generate(_ context.Context, prompt string) (string, error) {
	return "/videos/" + prompt + ".mp4", nil
}

func TestTrackerAgainstRedis(t *testing.T) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	rc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}
	defer func() { _ = rc.Terminate(ctx) }()

	host, err := rc.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := rc.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer client.Close()

	tr := jobs.NewTracker(jobs.NewRedisStore(client, time.Hour), okGenerator{}, jobs.Options{Async: true}, zerolog.Nop())
	job, err := tr.Submit(ctx, "taj")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := tr.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	path, err := tr.Result(ctx, job.ID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if path != "/videos/taj.mp4" {
		t.Fatalf("unexpected path %q", path)
	}
	ttl, err := client.TTL(ctx, "videojob:"+job.ID).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected key ttl, got %v (%v)", ttl, err)
	}
}
