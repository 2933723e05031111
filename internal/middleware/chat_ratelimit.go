package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/edulink/edulink-backend/pkg/clientip"
)

// Chat read rate limit: per-IP token bucket on the history and chat-list
// endpoints. Generous enough for rapid conversation switching while still
// capping abuse.

const (
	chatReadRPS        = 0.5 // 30/min
	chatReadBurst      = 20
	chatReadCleanupMin = 5 * time.Minute
	chatReadLimiterTTL = 30 * time.Minute
)

type chatLimiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

var (
	chatReadEntries   = make(map[string]*chatLimiterEntry)
	chatReadEntriesMu sync.Mutex
	chatReadCleanup   bool
)

func getChatReadLimiter(ip string) *rate.Limiter {
	chatReadEntriesMu.Lock()
	defer chatReadEntriesMu.Unlock()
	startChatReadCleanupOnce()

	e, ok := chatReadEntries[ip]
	if !ok {
		e = &chatLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(chatReadRPS), chatReadBurst),
			lastUse: time.Now(),
		}
		chatReadEntries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func startChatReadCleanupOnce() {
	if chatReadCleanup {
		return
	}
	chatReadCleanup = true
	go func() {
		ticker := time.NewTicker(chatReadCleanupMin)
		defer ticker.Stop()
		for range ticker.C {
			chatReadEntriesMu.Lock()
			now := time.Now()
			for k, e := range chatReadEntries {
				if now.Sub(e.lastUse) > chatReadLimiterTTL {
					delete(chatReadEntries, k)
				}
			}
			chatReadEntriesMu.Unlock()
		}
	}()
}

// ChatReadRateLimit applies rate limiting to GET requests under /api/chat/.
// Returns 429 with rate headers when exceeded.
func ChatReadRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, "/api/chat/") {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientip.RealClientIP(r)
		limiter := getChatReadLimiter(ip)

		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(chatReadBurst))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many chat requests. Please slow down."}`))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(chatReadBurst))
		next.ServeHTTP(w, r)
	})
}
