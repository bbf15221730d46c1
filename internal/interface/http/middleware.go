package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
	"github.com/ecoquest-hub/ecoquest-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyIdentity
	ctxKeyAccessToken
)

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// identityFrom returns the authenticated identity, if the request passed
// the auth middleware.
func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

func accessTokenFrom(ctx context.Context) string {
	if t, ok := ctx.Value(ctxKeyAccessToken).(string); ok {
		return t
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// Identity is the verified caller of an authenticated request.
type Identity struct {
	ID    shared.UserID
	Email string
	Role  shared.Role
}

// IdentityVerifier validates access tokens against the identity provider.
// The Supabase client in infrastructure satisfies it through a thin adapter.
type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}

// authMiddleware extracts the bearer token, verifies it and stores the
// identity in the request context. Requests without a valid token get a 401.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Identity == nil {
			writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "authentication is not configured")
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		identity, err := s.deps.Identity.Verify(r.Context(), token)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity, identity)
		ctx = context.WithValue(ctx, ctxKeyAccessToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireEducator guards editorial endpoints. Runs after authMiddleware.
func (s *Server) requireEducator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok {
			writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if identity.Role != shared.RoleEducator {
			writeJSONError(w, r, http.StatusForbidden, "forbidden", "educator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST ID + LOGGING + RECOVERY
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(requestID))

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		log := logger.FromContext(r.Context())
		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.status),
			logger.Latency(time.Since(start)),
			logger.String("client_ip", getClientIP(r)),
		}
		if rw.status >= http.StatusInternalServerError {
			log.Error("request completed", fields...)
		} else {
			log.Info("request completed", fields...)
		}
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(r.Context()).Error("panic recovered",
					logger.Any("panic", rec),
					logger.String("path", r.URL.Path),
				)
				writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for the access log.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(status int) {
	if !rw.wroteHeader {
		rw.status = status
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// ══════════════════════════════════════════════════════════════════════════════
// CORS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// Sliding window per client IP, in memory. Good enough for a single instance;
// multi-instance deployments front this with an edge limiter.
// ══════════════════════════════════════════════════════════════════════════════

type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	stopCh   chan struct{}
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    perMinute,
		window:   time.Minute,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	recent := rl.requests[clientIP][:0]
	for _, t := range rl.requests[clientIP] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.limit {
		rl.requests[clientIP] = recent
		return false
	}

	rl.requests[clientIP] = append(recent, now)
	return true
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-rl.window)
			for ip, times := range rl.requests {
				if len(times) == 0 || !times[len(times)-1].After(cutoff) {
					delete(rl.requests, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	close(rl.stopCh)
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(getClientIP(r)) {
			writeJSONError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i > 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
