package apiapp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authsvc "github.com/pkoziel/ogloszybko/internal/services/auth"
	ratesvc "github.com/pkoziel/ogloszybko/internal/services/rate"
	httperrors "github.com/pkoziel/ogloszybko/internal/transport/http/errors"
)

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

func AuthMiddleware(authService *authsvc.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authService == nil {
				httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
					Code:    "AUTH_SERVICE_UNAVAILABLE",
					Message: "auth service is unavailable",
				})
				return
			}

			accessToken, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				})
				return
			}

			claims, err := authService.ValidateAccessToken(r.Context(), accessToken)
			if err != nil {
				if log != nil {
					log.Debug("auth middleware validation failed", zap.Error(err))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid access token",
				})
				return
			}

			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{
				UserID: claims.UserID,
				SID:    claims.SID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware caps requests per client IP over the configured
// window. When the limiter backend is unreachable the request is let
// through; throttling is a guard, not a dependency.
func RateLimitMiddleware(limiter *ratesvc.Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return rateLimitWith(limiter, log, false, "RATE_LIMITED", "too many requests, try again later")
}

// CreateRateLimitMiddleware is the tighter per-IP cap on listing creation.
func CreateRateLimitMiddleware(limiter *ratesvc.Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return rateLimitWith(limiter, log, true, "CREATE_RATE_LIMITED", "too many listings created, try again later")
}

func rateLimitWith(limiter *ratesvc.Limiter, log *zap.Logger, create bool, code, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := remoteIP(r)
			var (
				retryAfter int64
				allowed    bool
				err        error
			)
			if create {
				retryAfter, allowed, err = limiter.AllowCreate(r.Context(), ip)
			} else {
				retryAfter, allowed, err = limiter.AllowRequest(r.Context(), ip)
			}
			if err != nil {
				if log != nil {
					log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
					Code:          code,
					Message:       message,
					RetryAfterSec: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func remoteIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.HasSuffix(host, "]") {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
