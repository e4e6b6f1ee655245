package web

import (
	"crypto/sha256"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

const (
	maxFailures   = 5
	failureWindow = time.Minute
)

// TokenAuth checks bearer tokens against a bcrypt hash and throttles
// clients that keep failing.
type TokenAuth struct {
	hash   []byte
	clock  timeutil.Clock
	logger *slog.Logger

	mu       sync.Mutex
	verified map[[sha256.Size]byte]struct{}
	failures map[string][]time.Time
}

// NewTokenAuth creates an authenticator for hash.
func NewTokenAuth(hash []byte, clock timeutil.Clock, logger *slog.Logger) *TokenAuth {
	return &TokenAuth{
		hash:     hash,
		clock:    clock,
		logger:   logger,
		verified: make(map[[sha256.Size]byte]struct{}),
		failures: make(map[string][]time.Time),
	}
}

// Check reports whether token matches. Successful tokens are remembered by
// digest so bcrypt runs once per token.
func (a *TokenAuth) Check(token string) bool {
	if token == "" {
		return false
	}
	sum := sha256.Sum256([]byte(token))

	a.mu.Lock()
	_, ok := a.verified[sum]
	a.mu.Unlock()
	if ok {
		return true
	}

	if bcrypt.CompareHashAndPassword(a.hash, []byte(token)) != nil {
		return false
	}
	a.mu.Lock()
	a.verified[sum] = struct{}{}
	a.mu.Unlock()
	return true
}

// throttled prunes old failures for ip and reports whether it is over the limit.
func (a *TokenAuth) throttled(ip string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	var recent []time.Time
	for _, t := range a.failures[ip] {
		if now.Sub(t) < failureWindow {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(a.failures, ip)
	} else {
		a.failures[ip] = recent
	}
	return len(recent) >= maxFailures
}

func (a *TokenAuth) fail(ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[ip] = append(a.failures[ip], a.clock.Now())
}

// Middleware rejects requests without a valid bearer token.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if a.throttled(ip) {
			writeError(w, http.StatusTooManyRequests, "too many failed attempts")
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			// browsers cannot set headers on WebSocket upgrades
			token = r.URL.Query().Get("token")
		}

		if !a.Check(token) {
			a.fail(ip)
			a.logger.Warn("Rejected request", "remote", ip, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
