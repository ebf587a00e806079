package host

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"golang.org/x/crypto/bcrypt"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	// TokenHash is the bcrypt hash the host's bearer token must match.
	TokenHash string
	// RateLimit/RateWindow throttle per source IP in front of the
	// per-caller role limits enforced inside the pipeline.
	RateLimit  int
	RateWindow time.Duration
	Production bool
}

// MiddlewareStack installs the transport middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	stack := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		secureMiddleware.Handler,
	}
	if cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		stack = append(stack, httprate.LimitByIP(cfg.RateLimit, window))
	}
	if cfg.TokenHash != "" {
		stack = append(stack, bearerAuth(cfg.Logger, cfg.TokenHash))
	}
	return stack
}

// bearerAuth verifies the host bearer token against its bcrypt hash.
func bearerAuth(logger *slog.Logger, tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
				if logger != nil {
					logger.Warn("host token rejected", slog.String("path", r.URL.Path))
				}
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Unauthorized."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
