package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisMemoryLimit = 128 << 20

var redisContainer = newSharedContainer(testcontainers.ContainerRequest{
	Image:        "redis:7-alpine",
	ExposedPorts: []string{"6379/tcp"},
	HostConfigModifier: func(hc *container.HostConfig) {
		hc.Memory = redisMemoryLimit
		hc.MemorySwap = redisMemoryLimit
	},
	WaitingFor: wait.ForAll(
		wait.ForLog("Ready to accept connections").WithStartupTimeout(containerStartTimeout),
		wait.ForListeningPort("6379/tcp").WithStartupTimeout(containerStartTimeout),
	),
}, "6379")

// SetupTestRedis connects to the shared Redis container. The database is
// flushed and the client closed when the test ends. Tests sharing the
// container run in parallel safely only with distinct key or channel prefixes.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     requireContainer(t, redisContainer),
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("ping redis: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}
