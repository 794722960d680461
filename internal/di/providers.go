package di

import (
	"fmt"
	"time"

	"kisquote/internal/domain/repository"
	"kisquote/internal/handler/api"
	internalrepo "kisquote/internal/repository"
	"kisquote/internal/service/calendar"
	"kisquote/internal/service/kis"
	"kisquote/internal/service/ratelimit"
	"kisquote/internal/usecase"
	"kisquote/pkg/cache"
	"kisquote/pkg/config"
	xhttp "kisquote/pkg/http"
	xlogger "kisquote/pkg/logger"
	"kisquote/pkg/metrics"
	"kisquote/pkg/server"
)

// tokenIssueWindow is the advisory spacing between provider token calls.
const tokenIssueWindow = time.Minute

// ProvideLogger creates the application logger. Production gets JSON,
// everything else a console format.
func ProvideLogger(cfg *config.Config) (*xlogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return xlogger.New(&xlogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCalendar creates the market calendar with the built-in KRX
// closure table and configured trading hours.
func ProvideCalendar(cfg *config.Config, logger *xlogger.Logger) *calendar.Calendar {
	return calendar.New(calendar.KRXHolidays,
		calendar.WithTradingHours(cfg.Market.OpenMinute, cfg.Market.CloseMinute),
		calendar.WithLogger(logger),
	)
}

// Stores bundles the two persistence interfaces that share one backend
// connection.
type Stores struct {
	Token repository.TokenStore
	Price repository.PriceStore
}

// ProvideStores creates the configured backend and wraps the price side
// with an in-process memory tier.
func ProvideStores(cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Type {
	case "postgres":
		pg, err := internalrepo.NewPostgresStore(cfg.Store.Postgres.DSN,
			internalrepo.WithConnLimits(
				cfg.Store.Postgres.MaxOpenConns,
				cfg.Store.Postgres.MaxIdleConns,
				cfg.Store.Postgres.ConnLifetime,
			),
		)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Token: pg,
			Price: internalrepo.NewCachedPriceStore(pg, cfg.Store.MemoryMaxSize),
		}, nil

	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Store.Redis.Host),
			cache.WithRedisPort(cfg.Store.Redis.Port),
			cache.WithRedisPassword(cfg.Store.Redis.Password),
			cache.WithRedisDB(cfg.Store.Redis.DB),
			cache.WithRedisPrefix(cfg.Store.Redis.Prefix),
		)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Token: internalrepo.NewRedisTokenStore(rc),
			Price: internalrepo.NewCachedPriceStore(internalrepo.NewRedisPriceStore(rc), cfg.Store.MemoryMaxSize),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// ProvidePriceStore exposes the price side of the store bundle.
func ProvidePriceStore(s *Stores) repository.PriceStore {
	return s.Price
}

// ProvideKISClient creates the provider client and its HTTP transport.
func ProvideKISClient(cfg *config.Config, logger *xlogger.Logger, m repository.Metrics) *kis.Client {
	httpClient := xhttp.NewClient(xhttp.WithTimeout(cfg.KIS.Timeout))
	return kis.New(cfg.KIS.BaseURL, cfg.KIS.AppKey, cfg.KIS.AppSecret, httpClient, logger, m)
}

// ProvideTokenManager creates the token manager and hands it back to the
// provider client as its token source.
func ProvideTokenManager(
	cfg *config.Config,
	client *kis.Client,
	stores *Stores,
	logger *xlogger.Logger,
	m repository.Metrics,
) *usecase.TokenManager {
	tm := usecase.NewTokenManager(
		client,
		stores.Token,
		ratelimit.New(tokenIssueWindow),
		logger,
		m,
		cfg.KIS.TokenMargin,
	)
	client.SetTokenProvider(tm)
	return tm
}

// ProvideQuoteService creates the batch quote use case. The token manager
// is a dependency only to force its wiring before the first fetch.
func ProvideQuoteService(
	store repository.PriceStore,
	client *kis.Client,
	cal *calendar.Calendar,
	logger *xlogger.Logger,
	m repository.Metrics,
	_ *usecase.TokenManager,
) *usecase.QuoteService {
	return usecase.NewQuoteService(store, client, cal, logger, m)
}

// ProvideHandler creates the HTTP route handler.
func ProvideHandler(
	logger *xlogger.Logger,
	quotes *usecase.QuoteService,
	cal *calendar.Calendar,
	store repository.PriceStore,
) xhttp.Handler {
	return api.NewQuotesHandler(logger, quotes, cal, store)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *xlogger.Logger,
	handler xhttp.Handler,
	quotes *usecase.QuoteService,
	store repository.PriceStore,
) *server.App {
	return server.New(cfg, logger, handler, quotes, store)
}
