package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pkoziel/ogloszybko/internal/config"
	"github.com/pkoziel/ogloszybko/internal/infra/httpclient"
	s3infra "github.com/pkoziel/ogloszybko/internal/infra/s3"
	pgrepo "github.com/pkoziel/ogloszybko/internal/repo/postgres"
	redrepo "github.com/pkoziel/ogloszybko/internal/repo/redis"
	analyticssvc "github.com/pkoziel/ogloszybko/internal/services/analytics"
	authsvc "github.com/pkoziel/ogloszybko/internal/services/auth"
	categoriessvc "github.com/pkoziel/ogloszybko/internal/services/categories"
	favoritessvc "github.com/pkoziel/ogloszybko/internal/services/favorites"
	listingssvc "github.com/pkoziel/ogloszybko/internal/services/listings"
	mediasvc "github.com/pkoziel/ogloszybko/internal/services/media"
	modsvc "github.com/pkoziel/ogloszybko/internal/services/moderation"
	ratesvc "github.com/pkoziel/ogloszybko/internal/services/rate"
	twofactorsvc "github.com/pkoziel/ogloszybko/internal/services/twofactor"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)

	userRepo := pgrepo.NewUserRepo(pool)
	listingRepo := pgrepo.NewListingRepo(pool)
	categoryRepo := pgrepo.NewCategoryRepo(pool)
	favoriteRepo := pgrepo.NewFavoriteRepo(pool)
	analyticsRepo := pgrepo.NewAnalyticsRepo(pool)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	twoFactorService := twofactorsvc.NewService(userRepo, cfg.Auth.TOTPIssuer)
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(userRepo, jwtManager, twoFactorService)

	oracleClient := modsvc.NewClient(modsvc.Config{
		BaseURL: cfg.Oracle.BaseURL,
		APIKey:  cfg.Oracle.APIKey,
		Model:   cfg.Oracle.Model,
	}, httpclient.New(cfg.Oracle.Timeout), log)

	mediaStorage := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket, cfg.S3.PublicBaseURL)
	mediaService := mediasvc.NewService(mediaStorage, cfg.Uploads.MaxImageSizeBytes)

	categoriesService := categoriessvc.NewService(categoryRepo, log)
	listingsService := listingssvc.NewService(listingRepo, categoryRepo, oracleClient, mediaService, analyticsRepo, cfg.Uploads.MaxImages, log)
	favoritesService := favoritessvc.NewService(favoriteRepo, listingRepo)
	analyticsService := analyticssvc.NewService(analyticsRepo, listingRepo)

	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Limits.Window, cfg.Limits.GeneralPerWindow, cfg.Limits.CreatePerWindow)

	if pool != nil {
		if err := categoriesService.EnsureDefaults(ctx); err != nil {
			log.Warn("category seeding failed", zap.Error(err))
		}
	}

	RegisterRoutes(r, Dependencies{
		AuthService:       authService,
		TwoFactorService:  twoFactorService,
		ListingsService:   listingsService,
		CategoriesService: categoriesService,
		FavoritesService:  favoritesService,
		AnalyticsService:  analyticsService,
		RateLimiter:       rateLimiter,
		Logger:            log,
		Config:            cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
