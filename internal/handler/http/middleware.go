package http

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/barelle/storefront/internal/auth"
	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/user"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	cartOwnerKey
)

func identityFrom(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok && id != nil
}

func cartOwnerFrom(ctx context.Context) (cart.Owner, bool) {
	owner, ok := ctx.Value(cartOwnerKey).(cart.Owner)
	return owner, ok
}

// requestLogger logs one line per request through zerolog.
// realIP applies chi's RealIP only to requests whose peer is one of the
// trusted proxies. Any other client keeps its socket address.
func realIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fromHeaders := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fromTrustedProxy(r.RemoteAddr, trusted) {
				fromHeaders.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromTrustedProxy(remoteAddr string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_ip", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// authenticate attaches the caller's identity when a bearer token is sent.
// Requests without one continue anonymously; a bad token is rejected.
func authenticate(tokens auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization header")
				return
			}

			identity, err := tokens.Authenticate(token)
			if err != nil {
				log.Warn().Err(err).Msg("Rejected bearer token")
				respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identityFrom(r.Context()); !ok {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole admits authenticated callers holding one of roles.
func requireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFrom(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Warn().Stringer("user_id", identity.UserID).Str("role", identity.Role.String()).
				Str("path", r.URL.Path).Msg("Forbidden: insufficient role")
			respondWithError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

const (
	cartSessionName  = "storefront_cart"
	cartSessionField = "cart_id"
	cartSessionAge   = 30 * 24 * 60 * 60
)

// CartSessions keeps the guest cart id in a signed cookie.
type CartSessions struct {
	store sessions.Store
}

func NewCartSessions(key []byte, secure bool) *CartSessions {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cartSessionAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CartSessions{store: store}
}

// ID returns the guest cart id carried by r, or "" when there is none.
func (c *CartSessions) ID(r *http.Request) string {
	session, err := c.store.Get(r, cartSessionName)
	if err != nil {
		return ""
	}
	id, _ := session.Values[cartSessionField].(string)
	return id
}

func (c *CartSessions) ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	// A cookie that fails verification yields a fresh session, not an error.
	session, _ := c.store.Get(r, cartSessionName)
	if id, ok := session.Values[cartSessionField].(string); ok && id != "" {
		return id, nil
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	session.Values[cartSessionField] = id.String()
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return id.String(), nil
}

// forget drops the guest cart id, once its lines belong to a user.
func (c *CartSessions) forget(w http.ResponseWriter, r *http.Request) {
	session, _ := c.store.Get(r, cartSessionName)
	delete(session.Values, cartSessionField)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Warn().Err(err).Msg("Failed to clear cart session")
	}
}

// cartOwner resolves the cart owner: the authenticated user, otherwise the
// guest session, created on first use.
func (c *CartSessions) cartOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var owner cart.Owner
		if identity, ok := identityFrom(r.Context()); ok {
			owner = cart.UserOwner(identity.UserID)
		} else {
			id, err := c.ensure(w, r)
			if err != nil {
				log.Error().Err(err).Msg("Failed to establish cart session")
				respondWithError(w, http.StatusInternalServerError, "Failed to establish cart session")
				return
			}
			owner = cart.SessionOwner(id)
		}

		ctx := context.WithValue(r.Context(), cartOwnerKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. Idle entries are swept
// once they have not been seen for idleTTL.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.idleTTL {
		for key, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idleTTL {
				delete(rl.visitors, key)
			}
		}
		rl.lastSweep = now
	}

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.getLimiter(ip).Allow() {
			log.Warn().Str("remote_ip", ip).Str("path", r.URL.Path).Msg("Rate limit exceeded")
			respondWithError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
