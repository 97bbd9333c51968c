package handlers

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carecoins/internal/identity"
	"carecoins/internal/models"
	"carecoins/internal/security"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	userContextKey   contextKey = "user"
	loggerContextKey contextKey = "logger"
)

// UserResolver maps a verified identity to a local user
type UserResolver interface {
	ResolveUser(ctx context.Context, id identity.Identity) (*models.User, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier identity.Verifier
	users    UserResolver
	limiter  *security.RateLimiter
	log      logrus.FieldLogger
}

// NewMiddleware creates a new middleware instance. A nil verifier makes every
// authenticated route fail with 500; a nil limiter disables rate limiting.
func NewMiddleware(verifier identity.Verifier, users UserResolver, limiter *security.RateLimiter, log logrus.FieldLogger) *Middleware {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Middleware{
		verifier: verifier,
		users:    users,
		limiter:  limiter,
		log:      log,
	}
}

// RequireAuth verifies the bearer token and puts the resolved user in the
// request context
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil {
			respondWithError(w, r, http.StatusInternalServerError, ErrIdentityNotConfigured, "", nil)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			respondWithError(w, r, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		id, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			respondWithError(w, r, http.StatusUnauthorized, ErrInvalidToken, "Token verification failed", err)
			return
		}

		user, err := m.users.ResolveUser(r.Context(), id)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, loggerContextKey, loggerFrom(ctx).WithField("user_id", user.ID))
		next(w, r.WithContext(ctx))
	}
}

// RateLimit rejects clients that exceed the configured request rate
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter.Allow(security.GetClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			respondWithError(w, r, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Logging assigns a request id, installs the request logger and logs every
// request once it completes
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		entry := m.log.WithField("request_id", requestID)
		ctx := context.WithValue(r.Context(), loggerContextKey, logrus.FieldLogger(entry))

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		entry.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("Request handled")
	})
}

// Recover turns a panic in a handler into a 500 response
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				loggerFrom(r.Context()).WithFields(logrus.Fields{
					"panic": p,
					"stack": string(debug.Stack()),
				}).Error("Handler panicked")
				respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}
