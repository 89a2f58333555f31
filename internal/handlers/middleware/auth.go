// internal/handlers/middleware/auth.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/pkg/logger"
)

// Claims are the token claims the API relies on. Tokens are minted by the
// identity provider; the API only verifies them.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller
type Principal struct {
	Subject string
	Role    string
}

type principalKey struct{}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	ctx = context.WithValue(ctx, logger.ContextKeyUserID, p.Subject)
	return context.WithValue(ctx, logger.ContextKeyRole, p.Role)
}

// PrincipalFrom returns the caller stored by Auth
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	Secret   []byte
	Issuer   string
	Disabled bool
}

// Auth verifies HS256 bearer tokens. With auth disabled every request runs
// as the administrator, which is only allowed outside production.
func Auth(cfg AuthConfig, log *slog.Logger) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Disabled {
				p := Principal{Subject: "dev", Role: domain.AdministratorRole}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims := &Claims{}
			_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return cfg.Secret, nil
			})
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				log.WarnContext(r.Context(), "rejected token", slog.String("error", err.Error()))
				writeError(w, http.StatusUnauthorized, msg)
				return
			}
			if claims.Subject == "" || claims.Role == "" {
				writeError(w, http.StatusUnauthorized, "token missing subject or role")
				return
			}

			p := Principal{Subject: claims.Subject, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter for websocket upgrades where browsers cannot
// set headers.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// AccessResolver looks up the access level a role has on a module
type AccessResolver interface {
	AccessFor(ctx context.Context, roleName, module string) (domain.AccessLevel, error)
}

// RequirePermission allows the request when the caller's role grants the
// HTTP method on module.
func RequirePermission(roles AccessResolver, module string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}

			level, err := roles.AccessFor(r.Context(), p.Role, module)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				log.ErrorContext(r.Context(), "failed to resolve permissions",
					slog.String("role", p.Role),
					slog.String("module", module),
					slog.String("error", err.Error()))
				writeError(w, http.StatusInternalServerError, "failed to resolve permissions")
				return
			}
			if !level.Allows(r.Method) {
				writeError(w, http.StatusForbidden, "insufficient permissions for "+module)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
