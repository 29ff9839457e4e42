package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/config"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/handler"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/metrics"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider/restprovider"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/repository"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/service"
)

// addressIndex is what the geocoding and title services read.
type addressIndex interface {
	service.GeoCodeRepository
	service.ReverseGeoCodeRepository
	service.TitleRepository
}

type stores struct {
	locations service.LocationStore
	jobs      service.JobStore
	addresses addressIndex
	close     func()
}

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("cannot init logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("cannot open stores")
	}
	defer st.close()

	// Providers
	providers, err := restprovider.NewAll(cfg.Providers)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot build providers")
	}
	registry, err := provider.NewRegistry(providers...)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot register providers")
	}
	log.Info().Int("providers", registry.Len()).Msg("provider registry ready")

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize layers
	geoCodeService := service.NewGeoCodeService(st.addresses)
	reverseGeocodeService := service.NewReverseGeoCodeService(st.addresses)
	titleService := service.NewTitleService(st.addresses, registry, cfg.Refresh.ProviderTimeout)

	resolver := service.NewResolver(st.locations, geoCodeService, titleService,
		service.WithReverseGeocoder(reverseGeocodeService),
		service.WithProximityRadius(cfg.Resolver.ProximityRadiusM),
		service.WithResolverMetrics(m),
	)
	orchestrator := service.NewOrchestrator(registry, st.locations,
		service.WithProviderTimeout(cfg.Refresh.ProviderTimeout),
		service.WithMaxConcurrency(cfg.Refresh.MaxConcurrency),
		service.WithGeotechRadius(cfg.Refresh.GeotechRadiusM),
		service.WithMaxAge(cfg.Refresh.MaxAge()),
		service.WithOrchestratorMetrics(m),
	)
	evaluations := service.NewEvaluationService(resolver, orchestrator, st.jobs,
		service.WithEvaluationMetrics(m),
	)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Handlers{
		GeoCode:        handler.NewGeoCodeHandler(geoCodeService),
		ReverseGeocode: handler.NewReverseGeocodeHandler(reverseGeocodeService),
		Locations:      handler.NewLocationHandler(resolver, evaluations),
		Evaluations:    handler.NewEvaluationHandler(evaluations),
		Metrics:        promhttp.Handler(),
	})

	srv := &http.Server{
		Addr: cfg.ServerAddress,
		Handler: cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		})(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", cfg.ServerAddress).Str("store", cfg.Store.Driver).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.Store.Driver == "postgres" {
		// Database connection
		pool, err := pgxpool.New(ctx, cfg.DBSource)
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &stores{
			locations: repository.NewLocationRepository(pool),
			jobs:      repository.NewJobRepository(pool),
			addresses: repository.NewAddressIndex(pool),
			close:     pool.Close,
		}, nil
	}

	index := repository.NewInMemoryAddressIndex()
	if cfg.Store.AddressFile != "" {
		points, skipped, err := repository.ReadAddressFile(cfg.Store.AddressFile)
		if err != nil {
			return nil, err
		}
		index.Load(points)
		log.Info().Int("points", len(points)).Int("skipped", skipped).Str("file", cfg.Store.AddressFile).Msg("address index loaded")
	}
	return &stores{
		locations: repository.NewInMemoryLocationStore(),
		jobs:      repository.NewInMemoryJobStore(),
		addresses: index,
		close:     func() {},
	}, nil
}
