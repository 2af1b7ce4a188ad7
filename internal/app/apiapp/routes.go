package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pkoziel/ogloszybko/internal/config"
	analyticssvc "github.com/pkoziel/ogloszybko/internal/services/analytics"
	authsvc "github.com/pkoziel/ogloszybko/internal/services/auth"
	categoriessvc "github.com/pkoziel/ogloszybko/internal/services/categories"
	favoritessvc "github.com/pkoziel/ogloszybko/internal/services/favorites"
	listingssvc "github.com/pkoziel/ogloszybko/internal/services/listings"
	ratesvc "github.com/pkoziel/ogloszybko/internal/services/rate"
	twofactorsvc "github.com/pkoziel/ogloszybko/internal/services/twofactor"
	"github.com/pkoziel/ogloszybko/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService       *authsvc.Service
	TwoFactorService  *twofactorsvc.Service
	ListingsService   *listingssvc.Service
	CategoriesService *categoriessvc.Service
	FavoritesService  *favoritessvc.Service
	AnalyticsService  *analyticssvc.Service
	RateLimiter       *ratesvc.Limiter
	Logger            *zap.Logger
	Config            config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	twoFactorHandler := handlers.NewTwoFactorHandler(deps.TwoFactorService)
	listingsHandler := handlers.NewListingsHandler(deps.ListingsService, deps.Config.Uploads.MaxImageSizeBytes)
	categoriesHandler := handlers.NewCategoriesHandler(deps.CategoriesService)
	favoritesHandler := handlers.NewFavoritesHandler(deps.FavoritesService)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.AnalyticsService)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	rateMW := RateLimitMiddleware(deps.RateLimiter, deps.Logger)
	createRateMW := CreateRateLimitMiddleware(deps.RateLimiter, deps.Logger)

	r.Get("/healthz", healthHandler.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(rateMW)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(authMW).Get("/user", authHandler.Me)
			r.With(authMW).Post("/2fa/setup", twoFactorHandler.Setup)
			r.With(authMW).Post("/2fa/verify", twoFactorHandler.Verify)
		})

		r.Get("/categories", categoriesHandler.List)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", listingsHandler.List)
			r.With(authMW, createRateMW).Post("/", listingsHandler.Create)
			r.Get("/{id}", listingsHandler.Get)
			r.With(authMW).Put("/{id}", listingsHandler.Update)
			r.With(authMW).Delete("/{id}", listingsHandler.Delete)
			r.With(authMW).Get("/{id}/analytics", analyticsHandler.DailyViews)
		})

		r.With(authMW).Get("/my-listings", listingsHandler.My)

		r.With(authMW).Post("/favorites/{listingID}", favoritesHandler.Toggle)
		r.With(authMW).Get("/favorites", favoritesHandler.List)
	})
}
