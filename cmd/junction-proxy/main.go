// Command junction-proxy serves read-only Junction place lookups over HTTP
// with a shared Redis cache and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/junction-dev/junction-go/pkg/junction"
	"github.com/junction-dev/junction-go/pkg/logging"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	maxPlaces       = 500
)

func main() {
	_ = godotenv.Load()

	logger := logging.Component(logging.Setup(logging.FromEnv(os.Getenv)), logging.ComponentProxy)

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("Proxy failed")
	}
}

func run(logger zerolog.Logger) error {
	port := getEnv("PORT", "8080")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cfg := junction.DefaultConfig()
	cfg.BaseURL = getEnv("JUNCTION_BASE_URL", junction.DefaultBaseURL)
	cfg.UserAgent = getEnv("USER_AGENT", "junction-proxy/"+junction.Version)
	cfg.Logger = logger
	cfg.Registerer = reg

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		cfg.Redis = rdb
		logger.Info().Str("redis", opts.Addr).Msg("Connected to Redis")
	}

	client, err := junction.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create Junction client: %w", err)
	}
	defer client.Close()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newServer(client, rdb, logger).routes(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("base_url", cfg.BaseURL).Msg("Starting Junction proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type server struct {
	client *junction.Client
	redis  redis.UniversalClient
	logger zerolog.Logger
}

func newServer(client *junction.Client, rdb *redis.Client, logger zerolog.Logger) *server {
	s := &server{client: client, logger: logger}
	if rdb != nil {
		s.redis = rdb
	}
	return s
}

func (s *server) routes(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /places", s.searchPlacesHandler)
	mux.HandleFunc("GET /places/{id}", s.getPlaceHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// readyHandler reports whether Redis, when configured, is reachable.
func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

func (s *server) searchPlacesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPlaces {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPlaces))
			return
		}
		limit = n
	}

	it, err := s.client.SearchPlaces(junction.PlaceQuery{
		NameLike: q.Get("name"),
		Type:     junction.PlaceType(q.Get("type")),
		IATA:     q.Get("iata"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer it.Stop()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	places := []junction.Place{}
	for it.Next(ctx) {
		places = append(places, it.Item())
		if len(places) >= limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, places)
}

func (s *server) getPlaceHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	place, err := s.client.GetPlace(ctx, junction.PlaceID(r.PathValue("id")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, place)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.logger.Warn().
		Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Junction request failed")

	if wait, ok := junction.RetryAfter(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds()+0.5)))
	}
	writeError(w, status, err.Error())
}

// statusFor maps a client error to the proxy's response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, junction.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, junction.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, junction.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, junction.ErrCancelled):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
