//go:build integration

package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/junction-dev/junction-go/internal/testutil"
	"github.com/junction-dev/junction-go/pkg/junction"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		_ = redisClient.Close()
		_ = redisC.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestReadyEndpoint_Redis(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	mock := testutil.NewMockJunction()
	defer mock.Close()

	cfg := junction.DefaultConfig()
	cfg.APIKey = "sk_test_proxy"
	cfg.BaseURL = mock.URL()
	cfg.Redis = redisClient
	client, err := junction.New(cfg)
	require.NoError(t, err)
	defer client.Close()

	h := newServer(client, redisClient, zerolog.Nop()).routes(prometheus.NewRegistry())

	t.Run("ready", func(t *testing.T) {
		resp, body := get(t, h, "/ready")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", body)
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		_ = redisClient.Close()

		resp, _ := get(t, h, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestGetPlace_SharedCache(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	mock := testutil.NewMockJunction()
	defer mock.Close()
	mock.SetResponse("GET", "/places/place_01", testutil.NewCachedJSONResponse(placeJSON, `"v1"`, time.Minute))

	newProxy := func() http.Handler {
		cfg := junction.DefaultConfig()
		cfg.APIKey = "sk_test_proxy"
		cfg.BaseURL = mock.URL()
		cfg.Redis = redisClient
		client, err := junction.New(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		return newServer(client, redisClient, zerolog.Nop()).routes(prometheus.NewRegistry())
	}

	// Two proxy instances share one Redis cache.
	first, second := newProxy(), newProxy()

	resp, _ := get(t, first, "/places/place_01")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, second, "/places/place_01")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "London St Pancras")
	assert.Equal(t, 1, mock.GetRequestCount())
}
