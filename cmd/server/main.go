package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"profile-service/internal/audit"
	"profile-service/internal/audit/publisher"
	"profile-service/internal/cache"
	"profile-service/internal/clients"
	"profile-service/internal/completeness"
	"profile-service/internal/domain"
	"profile-service/internal/enrichment"
	jwttoken "profile-service/internal/jwt_token"
	"profile-service/internal/kyc"
	"profile-service/internal/mirror"
	"profile-service/internal/platform/config"
	"profile-service/internal/platform/httpserver"
	"profile-service/internal/platform/logger"
	"profile-service/internal/platform/metrics"
	"profile-service/internal/platform/redis"
	"profile-service/internal/profile"
	"profile-service/internal/ratelimit"
	"profile-service/internal/storage"
	httptransport "profile-service/internal/transport/http"
	"profile-service/pkg/platform/circuit"
)

// main wires dependencies and runs the HTTP server and background sweeps
// until SIGINT or SIGTERM. Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("profile service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	health := map[string]httptransport.HealthFunc{}

	backend, closeBackend, err := buildCacheBackend(ctx, cfg, log, m, health)
	if err != nil {
		return err
	}
	defer closeBackend()
	profileCache := cache.New(backend,
		cache.WithTTLs(cache.TTLs{
			Profile:   cfg.Cache.ProfileTTL,
			Addresses: cfg.Cache.AddressesTTL,
			KYC:       cfg.Cache.KYCTTL,
		}),
		cache.WithLogger(log),
		cache.WithMetrics(m),
	)

	trailOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(m)}
	exporter, err := buildAuditExporter(ctx, cfg.Audit, log, m)
	if err != nil {
		return err
	}
	if exporter != nil {
		defer exporter.Close()
		trailOpts = append(trailOpts, audit.WithExporter(exporter))
	}
	trail := audit.NewTrail(audit.NewInMemoryStore(), trailOpts...)

	store := storage.New()
	locker := storage.NewProfileLocker()
	refresher := completeness.NewRefresher(store, completeness.Weights{
		PersonalInfo:  cfg.Weights.PersonalInfo,
		AddressInfo:   cfg.Weights.AddressInfo,
		KYCInfo:       cfg.Weights.KYCInfo,
		DocumentsInfo: cfg.Weights.DocumentsInfo,
	})

	collaborator := clients.Config{
		BaseURL:  cfg.Collaborators.AuthzURL,
		Timeout:  cfg.Collaborators.Timeout,
		Attempts: cfg.Collaborators.Attempts,
	}
	if collaborator.BaseURL == "" {
		log.Warn("no authorization service configured, third-party profile reads will be denied")
	}
	authz := clients.NewAuthzClient(collaborator, clients.WithLogger(log), clients.WithMetrics(m))

	var documents profile.DocumentStore = clients.NewLocalDocuments(cfg.Business.DocumentDownloadBase)
	if cfg.Collaborators.DocumentURL != "" {
		collaborator.BaseURL = cfg.Collaborators.DocumentURL
		documents = clients.NewDocumentClient(collaborator, clients.WithLogger(log), clients.WithMetrics(m))
	}

	profileOpts := []profile.Option{
		profile.WithLogger(log),
		profile.WithMetrics(m),
		profile.WithMaxAddresses(cfg.Business.MaxAddresses),
		profile.WithMandatoryConsents(consentTypes(cfg.Business.MandatoryConsents)),
		profile.WithLimiter(ratelimit.New(
			ratelimit.WithLogger(log),
			ratelimit.WithMetrics(m),
			ratelimit.WithRules(rateLimitRules(cfg.RateLimits)),
		)),
	}
	if cfg.Mirror.DSN != "" {
		pool, err := mirror.Connect(ctx, cfg.Mirror.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := mirror.New(pool, mirror.WithLogger(log))
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		profileOpts = append(profileOpts, profile.WithMirror(pg))
		health["mirror"] = pool.Ping
		log.Info("postgres mirror enabled")
	}

	profiles, err := profile.New(store, locker, trail, profileCache, refresher, authz, documents, profileOpts...)
	if err != nil {
		return err
	}
	kycService := kyc.NewService(store, locker, trail, profileCache, refresher,
		kyc.WithLogger(log),
		kyc.WithMetrics(m),
		kyc.WithValidity(cfg.KYCValidity()),
		kyc.WithRequirements(kycRequirements(cfg.Business.KYCRequirements)),
	)
	enrichments := enrichment.NewService(store, locker, trail, profileCache,
		enrichment.WithLogger(log),
		enrichment.WithMetrics(m),
		enrichment.WithReviewSLA(cfg.Business.MakerCheckerSLA),
	)

	deps := httptransport.Deps{
		Profiles:       profiles,
		KYC:            kycService,
		Enrichments:    enrichments,
		Policy:         profile.NewPolicy(nil),
		Tokens:         jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer),
		Logger:         log,
		Metrics:        m,
		RequestTimeout: cfg.Server.RequestTimeout,
		Health:         health,
	}
	if m != nil {
		deps.MetricsHandler = promhttp.Handler()
	}
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(deps), cfg.Server.RequestTimeout, log)

	sweep := &sweeper{
		kyc:         kycService,
		enrichments: enrichments,
		warnWindow:  cfg.Business.KYCRenewalWarning,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting profile service", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sweep.Run(gctx, cfg.Business.KYCExpirySweep)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down profile service")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func buildCacheBackend(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics, health map[string]httptransport.HealthFunc) (cache.Backend, func(), error) {
	if cfg.Cache.Backend != config.CacheBackendRedis {
		return cache.NewMemoryBackend(time.Minute), func() {}, nil
	}
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	health["redis"] = client.Health
	log.Info("redis cache backend enabled")
	backend := cache.NewRedisBackend(client,
		cache.WithRedisLogger(log),
		cache.WithRedisMetrics(m),
		cache.WithRedisBreaker(circuit.New("redis-cache")),
	)
	return backend, func() { _ = client.Close() }, nil
}

func buildAuditExporter(ctx context.Context, cfg config.Audit, log *slog.Logger, m *metrics.Metrics) (*publisher.KafkaExporter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := publisher.NewKafkaClient(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := publisher.EnsureTopic(ctx, publisher.NewTopicAdmin(client), cfg.Topic, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		client.Close()
		return nil, err
	}
	log.Info("audit export enabled", "topic", cfg.Topic, "brokers", cfg.Brokers)
	return publisher.NewKafkaExporter(client, cfg.Topic,
		publisher.WithLogger(log),
		publisher.WithMetrics(m),
		publisher.WithBufferSize(cfg.BufferSize),
	), nil
}

func consentTypes(names []string) []domain.ConsentType {
	out := make([]domain.ConsentType, 0, len(names))
	for _, n := range names {
		out = append(out, domain.ConsentType(n))
	}
	return out
}

func rateLimitRules(rules map[string]config.Rule) map[ratelimit.Action]ratelimit.Rule {
	out := make(map[ratelimit.Action]ratelimit.Rule, len(rules))
	for action, r := range rules {
		out[ratelimit.Action(action)] = ratelimit.Rule{Limit: r.Limit, Window: r.Window}
	}
	return out
}

func kycRequirements(reqs map[string][]string) map[domain.KYCType][]domain.DocumentType {
	out := make(map[domain.KYCType][]domain.DocumentType, len(reqs))
	for kycType, docs := range reqs {
		types := make([]domain.DocumentType, 0, len(docs))
		for _, d := range docs {
			types = append(types, domain.DocumentType(d))
		}
		out[domain.KYCType(kycType)] = types
	}
	return out
}
