// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AccelByte/skill-matchmaker/pkg/capacity"
	"github.com/AccelByte/skill-matchmaker/pkg/config"
	"github.com/AccelByte/skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/skill-matchmaker/pkg/formation"
	"github.com/AccelByte/skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/skill-matchmaker/pkg/models"
	"github.com/AccelByte/skill-matchmaker/pkg/queue"
	"github.com/AccelByte/skill-matchmaker/pkg/rating"
	"github.com/AccelByte/skill-matchmaker/pkg/scheduler"
	"github.com/AccelByte/skill-matchmaker/pkg/service"
	"github.com/AccelByte/skill-matchmaker/pkg/session"
)

func main() {
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		logrus.SetLevel(level)
	}

	cfg, err := config.New()
	if err != nil {
		logrus.Fatalf("unable to parse config: %s", err)
	}

	shutdownTracer, err := initTracing()
	if err != nil {
		logrus.Warnf("tracing disabled: %s", err)
	}

	registry := prometheus.NewRegistry()
	mm := metrics.NewMetrics(registry)

	provider := newEnvRatingProvider()
	client := newLoopbackCapacityClient(cfg)
	capacityRegistry := capacity.NewRegistry(cfg, client, mm)
	store := queue.NewStore(cfg, provider, mm)
	engine := formation.NewEngine(cfg, mm)
	orchestrator := session.NewOrchestrator(cfg, capacityRegistry, client, provider, mm)
	sched := scheduler.New(cfg, store, engine, orchestrator, mm)
	svc := service.New(cfg, store, orchestrator)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logrus.Infof("scheduler started, tick interval %s", cfg.TickInterval)
		return sched.Run(groupCtx)
	})

	httpServer := newHTTPServer(svc, registry)
	group.Go(func() error {
		logrus.Infof("admin/metrics listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logrus.Errorf("shutting down: %s", err)
	}
	if shutdownTracer != nil {
		_ = shutdownTracer(context.Background())
	}
}

// initTracing wires the zipkin exporter when ZIPKIN_URL is set, otherwise the
// global no-op tracer stays in place and envelope spans cost nothing.
func initTracing() (func(context.Context) error, error) {
	zipkinURL := os.Getenv("ZIPKIN_URL")
	if zipkinURL == "" {
		return nil, nil
	}
	exporter, err := zipkin.New(zipkinURL)
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(b3.New())
	return provider.Shutdown, nil
}

func newHTTPServer(svc *service.MatchmakingService, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.GetHealth())
	})
	mux.HandleFunc("/statistics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.GetStatistics())
	})
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.GetActiveSessions())
	})
	return &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: mux,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("failed to write response: %s", err)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// envRatingProvider is a placeholder provider for local runs: every player
// rates at the configured default and is ranked eligible. Production deploys
// swap in the real rating service client.
type envRatingProvider struct {
	defaultRating float64
}

func newEnvRatingProvider() rating.Provider {
	return &envRatingProvider{defaultRating: 1000}
}

func (p *envRatingProvider) GetRating(ctx context.Context, playerID string) (float64, error) {
	return p.defaultRating, nil
}

func (p *envRatingProvider) IsRankedEligible(ctx context.Context, playerID string) bool {
	return true
}

func (p *envRatingProvider) UpdateRating(ctx context.Context, outcome models.MatchOutcome) bool {
	return true
}

// loopbackCapacityClient fabricates local instances so the pipeline can run
// end to end without a fleet behind it.
type loopbackCapacityClient struct {
	cfg   *config.Config
	count int
}

func newLoopbackCapacityClient(cfg *config.Config) capacity.Client {
	return &loopbackCapacityClient{cfg: cfg}
}

func (c *loopbackCapacityClient) FindOrProvisionInstance(ctx context.Context, gameMode string, region string, requiredSlots int) (*models.CapacityInstance, error) {
	c.count++
	maxPlayers := c.cfg.MaxGroupSize
	if maxPlayers < requiredSlots {
		maxPlayers = requiredSlots
	}
	return &models.CapacityInstance{
		InstanceID: utilInstanceID(c.count),
		GameMode:   gameMode,
		Region:     region,
		MaxPlayers: maxPlayers,
		Status:     models.InstanceStatusAvailable,
	}, nil
}

func (c *loopbackCapacityClient) TransportPlayers(ctx context.Context, playerIDs []string, instanceID string, metadata models.SessionMetadata) bool {
	scope := envelope.NewRootScope(ctx, "loopback.transport", "")
	defer scope.Finish()
	scope.Log.
		WithField("instanceID", instanceID).
		WithField("players", len(playerIDs)).
		Info("players transported to instance")
	return true
}

func utilInstanceID(n int) string {
	return "local-" + strconv.Itoa(n)
}
