package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"notary/internal/chain"
	contractsHandler "notary/internal/contracts/handler"
	contractsMetrics "notary/internal/contracts/metrics"
	contractsService "notary/internal/contracts/service"
	contractsStore "notary/internal/contracts/store"
	"notary/internal/documents"
	"notary/internal/integrity"
	"notary/internal/integrity/adapters"
	integrityHandler "notary/internal/integrity/handler"
	integrityMetrics "notary/internal/integrity/metrics"
	"notary/internal/platform/config"
	"notary/internal/platform/httpserver"
	"notary/internal/platform/kafka"
	httpMetrics "notary/internal/platform/metrics"
	"notary/internal/platform/postgres"
	platformRedis "notary/internal/platform/redis"
	"notary/internal/ratelimit"
	"notary/internal/tenant"
	tenantHandler "notary/internal/tenant/handler"
	tenantMetrics "notary/internal/tenant/metrics"
	tenantModels "notary/internal/tenant/models"
	tenantStore "notary/internal/tenant/store"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/audit/outbox"
	"notary/pkg/platform/audit/publisher"
	"notary/pkg/platform/audit/publishers/compliance"
	auditMemory "notary/pkg/platform/audit/store/memory"
	auditPostgres "notary/pkg/platform/audit/store/postgres"
	"notary/pkg/platform/circuit"
	"notary/pkg/platform/httputil"
	"notary/pkg/platform/middleware/admin"
	"notary/pkg/platform/middleware/auth"
	"notary/pkg/platform/middleware/metadata"
	"notary/pkg/platform/middleware/requesttime"
	"notary/pkg/requestcontext"
)

// contractStore is satisfied by both the in-memory and PostgreSQL stores.
type contractStore interface {
	contractsService.Store
	integrity.ContractStore
}

// infra holds the optional external connections. Nil fields are disabled
// integrations; the service then falls back to in-process implementations.
type infra struct {
	db    *sql.DB
	redis *goredis.Client
	kafka *kgo.Client
	eth   *ethclient.Client
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		in.db = db
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				in.close(log)
				return nil, err
			}
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rdb, err := platformRedis.Open(ctx, cfg.Redis)
	if err != nil {
		in.close(log)
		return nil, err
	}
	in.redis = rdb

	kc, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		in.close(log)
		return nil, err
	}
	in.kafka = kc

	if cfg.Chain.RPCURL != "" {
		eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			in.close(log)
			return nil, fmt.Errorf("dial chain rpc: %w", err)
		}
		in.eth = eth
	} else {
		log.Warn("CHAIN_RPC_URL not set, on-chain checks will report errors")
	}
	return in, nil
}

func (in *infra) close(log *slog.Logger) {
	if in.eth != nil {
		in.eth.Close()
	}
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(log)

	reg := prometheus.DefaultRegisterer
	chainMetrics := chain.NewMetricsWithRegisterer(reg)

	// Tenants
	registry, err := tenantStore.LoadFile(cfg.Tenants.File)
	if err != nil {
		return err
	}
	tenants := tenant.NewService(registry, tenantModels.Base{
		S3Bucket:             cfg.Storage.Bucket,
		S3Prefix:             cfg.Storage.Prefix,
		ChainRegistryAddress: cfg.Chain.RegistryAddress,
	}, log)

	// Storage
	var store contractStore
	var txRunner contractsService.TxRunner
	var auditStore audit.Store
	if in.db != nil {
		store = contractsStore.NewPostgres(in.db)
		txRunner = postgres.NewTxManager(in.db)
		auditStore = auditPostgres.New(in.db)
	} else {
		store = contractsStore.NewInMemory()
		txRunner = &contractsStore.LockingTx{}
		auditStore = auditMemory.NewInMemoryStore()
	}

	docs, err := buildDocuments(cfg.Storage, tenants, log)
	if err != nil {
		return err
	}

	// Chain
	var decoder integrity.Decoder
	var backend chain.Backend
	if in.eth != nil {
		breaker := circuit.New("chain-rpc",
			circuit.WithFailureThreshold(cfg.Chain.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.Chain.SuccessThreshold),
		)
		var cache chain.Cache = chain.NewMemoryCache()
		if in.redis != nil {
			cache = chain.NewRedisCache(in.redis)
		}
		rpcDecoder := chain.NewDecoder(in.eth,
			chain.WithBreaker(breaker),
			chain.WithDecoderMetrics(chainMetrics),
			chain.WithDecoderLogger(log),
		)
		decoder = adapters.NewChainDecoder(chain.NewCachedDecoder(rpcDecoder, cache, cfg.Chain.DecodeCacheTTL, chainMetrics, log))
		backend = in.eth
	}
	registrar, err := chain.NewRegistrar(ctx, backend, chain.RegistrarConfig{
		PrivateKey:      cfg.Chain.PrivateKey,
		RegistryAddress: cfg.Chain.RegistryAddress,
		ChainID:         cfg.Chain.ChainID,
		TxTimeout:       cfg.Chain.TxTimeout,
	}, chain.WithRegistrarMetrics(chainMetrics), chain.WithRegistrarLogger(log))
	if err != nil {
		return err
	}

	// Audit: lifecycle events are written synchronously inside the write
	// transaction; integrity reports are recorded through a bounded buffer.
	compliancePublisher := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	defer compliancePublisher.Close()
	reportPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Integrity.AuditBuffer),
		publisher.WithLogger(log),
	)
	defer reportPublisher.Close()

	// Services
	contracts := contractsService.New(store, registrar, tenants,
		contractsService.WithLogger(log),
		contractsService.WithMetrics(contractsMetrics.NewWithRegisterer(reg)),
		contractsService.WithAuditPublisher(compliancePublisher),
		contractsService.WithTxRunner(txRunner),
	)
	engine := integrity.NewEngine(store, decoder, docs,
		integrity.WithLogger(log),
		integrity.WithMetrics(integrityMetrics.NewWithRegisterer(reg)),
		integrity.WithRPCURL(cfg.Chain.RPCURL),
		integrity.WithMaxConcurrency(cfg.Integrity.MaxConcurrency),
		integrity.WithAuditPublisher(reportPublisher),
	)

	var limitStore ratelimit.Store = ratelimit.NewInMemory()
	if in.redis != nil {
		limitStore = ratelimit.NewRedis(in.redis)
	}
	auditLimiter := ratelimit.New(limitStore, "audit", cfg.Integrity.RateLimit, cfg.Integrity.RateWindow,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimit.NewMetrics(reg)),
	)

	router := newRouter(routerDeps{
		cfg:       cfg,
		log:       log,
		tenants:   tenants,
		metrics:   tenantMetrics.NewWithRegisterer(reg),
		http:      httpMetrics.NewWithRegisterer(reg),
		validator: auth.NewHMACValidator(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer),
		contracts: contractsHandler.New(contracts, log),
		integrity: integrityHandler.New(engine, log),
		limiter:   auditLimiter,
		security:  reportPublisher,
	})

	g, gctx := errgroup.WithContext(ctx)
	if in.db != nil && in.kafka != nil {
		if err := kafka.EnsureTopic(ctx, in.kafka, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
			return err
		}
		relay := outbox.NewRelay(in.db, in.kafka, cfg.Kafka.AuditTopic,
			outbox.WithInterval(cfg.Kafka.PollInterval),
			outbox.WithBatchSize(cfg.Kafka.BatchSize),
			outbox.WithLogger(log),
		)
		g.Go(func() error {
			if err := relay.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	srv := httpserver.New(cfg.Server, router, log)
	g.Go(func() error {
		log.Info("starting notary", "addr", cfg.Server.Addr, "chain_registration", registrar.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildDocuments(cfg config.StorageConfig, tenants documents.TenantResolver, log *slog.Logger) (integrity.DocumentFetcher, error) {
	if cfg.Endpoint == "" {
		log.Warn("S3_ENDPOINT not set, serving documents from memory")
		return documents.NewInMemory(), nil
	}
	client, err := documents.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	return documents.NewS3Fetcher(client, tenants, log), nil
}

type routerDeps struct {
	cfg       config.Config
	log       *slog.Logger
	tenants   *tenant.Service
	metrics   *tenantMetrics.Metrics
	http      *httpMetrics.Metrics
	validator auth.JWTValidator
	contracts *contractsHandler.Handler
	integrity *integrityHandler.Handler
	limiter   *ratelimit.Limiter
	security  auth.AuditPublisher
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(d.http.Middleware)
	r.Use(tenantHandler.Resolution{
		Registry: d.tenants,
		Hosts:    d.cfg.Tenants.Hosts,
		Default:  d.cfg.Tenants.DefaultTenant,
		Metrics:  d.metrics,
	}.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": requestcontext.Now(r.Context()).UTC().Format(time.RFC3339),
		})
	})
	r.Handle("/metrics", promhttp.Handler())
	tenants := tenant.NewHandler(d.tenants, d.log)
	tenants.Register(r)
	if d.cfg.Server.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(d.cfg.Server.AdminToken, d.log))
			tenants.RegisterAdmin(r)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.validator, d.log, auth.WithAuditPublisher(d.security)))
		d.contracts.Register(r)
		if d.limiter != nil {
			d.integrity.Register(r.With(d.limiter.Middleware))
		} else {
			d.integrity.Register(r)
		}
	})
	return r
}
