package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/internal/service"
	"github.com/hookline/tow-bookings/pkg/auth"
	"github.com/hookline/tow-bookings/pkg/config"
	"github.com/hookline/tow-bookings/pkg/logger"
)

type Handlers struct {
	bookings service.BookingService
	admin    service.AdminService
	auth     service.AuthService
	config   *config.Config
}

func New(bookings service.BookingService, admin service.AdminService, authService service.AuthService, cfg *config.Config) *Handlers {
	return &Handlers{
		bookings: bookings,
		admin:    admin,
		auth:     authService,
		config:   cfg,
	}
}

type contextKey string

const claimsKey contextKey = "claims"

// RequireJWT rejects requests without a valid bearer token. A non-empty
// role restricts access to that role, with admin always allowed through.
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
			if err != nil || claims.Scope == "refresh" {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != domain.RoleAdmin {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalJWT attaches claims when a valid token is present and lets the
// request through either way. Booking submission uses it: signed-in
// customers get their booking linked, test-mode submissions pass without
// an account.
func (h *Handlers) OptionalJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if claims, err := auth.Parse(token, h.config.Auth.JWTSecret); err == nil && claims.Scope != "refresh" {
				ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
				ctx = context.WithValue(ctx, claimsKey, claims)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func isStaff(claims *auth.Claims) bool {
	return claims != nil && (claims.Role == domain.RoleDispatcher || claims.Role == domain.RoleAdmin)
}

// Helper functions for common response patterns
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Internal
// details never reach the client on 5xx responses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := errStatus(err)
	switch {
	case status == http.StatusServiceUnavailable:
		logger.ErrorContext(r.Context(), "Store unavailable", "error", err)
		writeError(w, status, "Service temporarily unavailable, try again")
	case status >= 500:
		logger.ErrorContext(r.Context(), "Request failed", "error", err)
		writeError(w, status, "Internal server error")
	default:
		writeError(w, status, err.Error())
	}
}

func errStatus(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsAuth(err):
		return http.StatusUnauthorized
	case domain.IsPayment(err):
		return http.StatusPaymentRequired
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsConflict(err):
		return http.StatusConflict
	case domain.IsStore(err):
		return http.StatusServiceUnavailable
	default:
		// Configuration and persistence faults are server-side
		return http.StatusInternalServerError
	}
}

// parsePage reads page/limit query params for the admin list shape.
func parsePage(r *http.Request) (page, limit int) {
	page = 1
	limit = 20

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	return page, limit
}

// parsePagination reads limit/offset query params for plain lists.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
