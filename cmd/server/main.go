package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bc-dunia/httpdrill/internal/artifacts"
	"github.com/bc-dunia/httpdrill/internal/auth"
	"github.com/bc-dunia/httpdrill/internal/config"
	"github.com/bc-dunia/httpdrill/internal/controlplane/api"
	"github.com/bc-dunia/httpdrill/internal/controlplane/runmanager"
	"github.com/bc-dunia/httpdrill/internal/metrics"
	"github.com/bc-dunia/httpdrill/internal/otel"
	"github.com/bc-dunia/httpdrill/internal/retention"
	"github.com/bc-dunia/httpdrill/internal/sink"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP server address")
	authMode := flag.String("auth-mode", "api_key", "Authentication mode: none, api_key, jwt")
	apiKeys := flag.String("api-keys", "", "Comma-separated API keys (for api_key mode)")
	jwtSecret := flag.String("jwt-secret", "", "JWT secret (for jwt mode)")
	insecure := flag.Bool("insecure", false, "Allow unauthenticated mode (only safe on loopback)")
	rateLimit := flag.Float64("rate-limit", 100, "API rate limit in requests/second (0 to disable)")
	rateBurst := flag.Int("rate-burst", 200, "API rate limit burst size")
	artifactDir := flag.String("artifact-dir", "./httpdrill-artifacts", "Directory for run reports, telemetry, and config snapshots")
	artifactsTTLHours := flag.Int("artifacts-ttl-hours", 168, "Delete a run's artifacts this many hours after its directory was last written (0 disables cleanup)")
	devMode := flag.Bool("dev", false, "Development mode: binds to loopback, disables auth")
	otelExporter := flag.String("otel-exporter", "none", "OTel side-exporter for traces/metrics: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP collector endpoint (for otlp-grpc/otlp-http exporters)")
	flag.Parse()

	if *devMode {
		*addr = "127.0.0.1:8080"
		*insecure = true
		*rateLimit = 0
		fmt.Println("")
		fmt.Println("╔════════════════════════════════════════════════════════════╗")
		fmt.Println("║  DEVELOPMENT MODE - DO NOT USE IN PRODUCTION                ║")
		fmt.Println("║  Auth disabled, rate limiting disabled                      ║")
		fmt.Println("║  Bound to loopback only (127.0.0.1:8080)                    ║")
		fmt.Println("╚════════════════════════════════════════════════════════════╝")
		fmt.Println("")
	}

	store, err := artifacts.NewFilesystemStore(*artifactDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating artifact store: %v\n", err)
		os.Exit(1)
	}

	cfgMgr := config.NewManager(sink.NewArtifactConfigStore(store))
	if err := cfgMgr.Reload(); err != nil {
		slog.Warn("failed to load persisted config, starting from defaults", "error", err)
	}

	metricsSink := sink.NewArtifactMetricsSink(store)
	rm := runmanager.NewManager(cfgMgr, metricsSink, sink.NoopScriptRunner{}, store, *artifactDir)

	if otelMetrics, otelTracer, err := setupOtel(*otelExporter, *otelEndpoint); err != nil {
		slog.Warn("otel_setup_failed", "error", err)
	} else if otelMetrics != nil || otelTracer != nil {
		rm.SetOtel(otelMetrics, otelTracer)
	}

	if *artifactsTTLHours > 0 {
		retentionMgr := retention.NewManager(retention.Config{ArtifactsTTLHours: *artifactsTTLHours}, store, nil)
		retentionMgr.Start()
		defer retentionMgr.Stop()
	}

	server := api.NewServer(*addr, rm)

	collector := metrics.NewCollector()
	collector.SetRunProvider(rm)
	collector.SetSnapshotProvider(rm)
	server.SetMetricsCollector(collector)

	server.SetRateLimiterConfig(&api.RateLimiterConfig{
		RequestsPerSecond: *rateLimit,
		BurstSize:         *rateBurst,
		Enabled:           *rateLimit > 0,
	})

	if strings.EqualFold(*authMode, string(auth.AuthModeNone)) && !*insecure {
		fmt.Fprintln(os.Stderr, "Refusing to start with auth disabled without --insecure")
		os.Exit(1)
	}

	authConfig := &auth.Config{
		Mode:         auth.AuthMode(*authMode),
		InsecureMode: *insecure,
		SkipPaths:    []string{"/healthz", "/readyz"},
	}
	if *insecure {
		authConfig.Mode = auth.AuthModeNone
	}
	if *apiKeys != "" {
		authConfig.APIKeys = strings.Split(*apiKeys, ",")
	}
	if *jwtSecret != "" {
		authConfig.JWTSecret = []byte(*jwtSecret)
	}
	server.SetAuthConfig(authConfig)

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("httpdrill control plane listening on %s\n", server.URL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
	}

	fmt.Println("Server stopped")
}

// setupOtel builds an optional OpenTelemetry metrics/tracing side-exporter
// from the --otel-exporter flag. Both returned values are nil when the
// exporter is "none" (the default): the control plane's own Prometheus
// collector stays the source of truth for /metrics either way.
func setupOtel(exporter, endpoint string) (*otel.Metrics, *otel.Tracer, error) {
	exporterType := otel.ExporterType(exporter)
	if exporterType == "" || exporterType == otel.ExporterNone {
		return nil, nil, nil
	}

	ctx := context.Background()

	tracerCfg := &otel.Config{
		Enabled:      true,
		ServiceName:  "httpdrill",
		ExporterType: exporterType,
		OTLPEndpoint: endpoint,
		SampleRate:   1.0,
	}
	tracer, err := otel.NewTracer(ctx, tracerCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("otel tracer: %w", err)
	}

	metricsCfg := &otel.MetricsConfig{
		Enabled:      true,
		ServiceName:  "httpdrill",
		ExporterType: exporterType,
		OTLPEndpoint: endpoint,
	}
	otelMetrics, err := otel.NewMetrics(ctx, metricsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("otel metrics: %w", err)
	}

	otel.SetGlobalTracer(tracer)
	otel.SetGlobalMetrics(otelMetrics)
	return otelMetrics, tracer, nil
}
