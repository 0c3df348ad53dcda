// internal/auth/auth.go
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Request headers carrying the caller's credentials.
const (
	HeaderRole = "X-Access-Role"
	HeaderPIN  = "X-Access-Pin"
)

// Role is the access level granted to a request.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

var (
	ErrUnauthorized = errors.New("invalid credentials")
	ErrForbidden    = errors.New("admin access required")
	ErrRateLimited  = errors.New("too many failed attempts")
)

// Authenticator checks PIN credentials against Argon2id hashes. Failed
// attempts draw from a token bucket per client address; once a client's
// bucket is empty its attempts are refused until it refills. Requests that
// name no role are rejected without counting as attempts. A PIN that passed
// the KDF once is afterwards checked against its SHA-256 digest.
type Authenticator struct {
	hashes map[Role]string
	rate   rate.Limit
	burst  int
	logger *slog.Logger
	verify func(pin, encoded string) (bool, error)

	mu       sync.Mutex
	clients  map[string]*rate.Limiter
	verified map[Role][sha256.Size]byte
}

// maxTrackedClients bounds the limiter table. Clients whose bucket is full
// are forgotten first.
const maxTrackedClients = 4096

// New hashes the configured PINs. Values that are already hashed are used as
// is. With no PINs at all the authenticator lets every request through as admin.
func New(adminPIN, guestPIN string, failuresPerMinute int, logger *slog.Logger) (*Authenticator, error) {
	if failuresPerMinute <= 0 {
		return nil, fmt.Errorf("failures per minute must be positive, got %d", failuresPerMinute)
	}
	a := &Authenticator{
		hashes:   make(map[Role]string),
		rate:     rate.Every(time.Minute / time.Duration(failuresPerMinute)),
		burst:    failuresPerMinute,
		logger:   logger,
		verify:   VerifyPIN,
		clients:  make(map[string]*rate.Limiter),
		verified: make(map[Role][sha256.Size]byte),
	}
	for role, pin := range map[Role]string{RoleAdmin: adminPIN, RoleGuest: guestPIN} {
		if pin == "" {
			continue
		}
		if IsHashed(pin) {
			a.hashes[role] = pin
			continue
		}
		hash, err := HashPIN(pin)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s pin: %w", role, err)
		}
		a.hashes[role] = hash
	}
	return a, nil
}

// Enabled reports whether credentials are required.
func (a *Authenticator) Enabled() bool { return len(a.hashes) > 0 }

// Authenticate returns the role the credentials grant to client, which
// identifies the caller for throttling (usually its remote address).
func (a *Authenticator) Authenticate(client string, role Role, pin string) (Role, error) {
	if !a.Enabled() {
		return RoleAdmin, nil
	}
	if role == "" {
		return "", ErrUnauthorized
	}
	limiter := a.limiter(client)
	if limiter.Tokens() < 1 {
		return "", ErrRateLimited
	}
	hash, ok := a.hashes[role]
	if ok {
		if a.seen(role, pin) {
			return role, nil
		}
		valid, err := a.verify(pin, hash)
		if err != nil {
			return "", fmt.Errorf("failed to verify pin: %w", err)
		}
		if valid {
			a.remember(role, pin)
			return role, nil
		}
	}
	limiter.Allow()
	return "", ErrUnauthorized
}

func digest(role Role, pin string) [sha256.Size]byte {
	return sha256.Sum256([]byte(string(role) + "\x00" + pin))
}

// seen reports whether pin already passed the KDF check for role.
func (a *Authenticator) seen(role Role, pin string) bool {
	a.mu.Lock()
	want, ok := a.verified[role]
	a.mu.Unlock()
	if !ok {
		return false
	}
	got := digest(role, pin)
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

func (a *Authenticator) remember(role Role, pin string) {
	d := digest(role, pin)
	a.mu.Lock()
	a.verified[role] = d
	a.mu.Unlock()
}

func (a *Authenticator) limiter(client string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if l, ok := a.clients[client]; ok {
		return l
	}
	if len(a.clients) >= maxTrackedClients {
		for k, l := range a.clients {
			if l.Tokens() >= float64(a.burst) {
				delete(a.clients, k)
			}
		}
	}
	l := rate.NewLimiter(a.rate, a.burst)
	a.clients[client] = l
	return l
}

// clientOf keys a request by its remote host.
func clientOf(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type roleKey struct{}

// RoleFrom returns the role stored on the request context by Middleware.
func RoleFrom(ctx context.Context) (Role, bool) {
	r, ok := ctx.Value(roleKey{}).(Role)
	return r, ok
}

// Middleware authenticates every request. Guests may only use safe methods.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := a.Authenticate(clientOf(r), Role(r.Header.Get(HeaderRole)), r.Header.Get(HeaderPIN))
		if err == nil && role != RoleAdmin && !safeMethod(r.Method) {
			err = ErrForbidden
		}
		if err != nil {
			a.logger.WarnContext(r.Context(), "request rejected",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("role", r.Header.Get(HeaderRole)),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey{}, role)))
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "error"
	switch {
	case errors.Is(err, ErrRateLimited):
		status, code = http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "code": code})
}
