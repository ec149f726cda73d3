package middleware

import (
	"net/http"
	"sync"
	"time"

	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter - ограничитель частоты запросов по IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	ttl      time.Duration
}

func NewIPRateLimiter(r rate.Limit, burst int, ttl time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    burst,
		ttl:      ttl,
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	for key, other := range l.visitors {
		if now.Sub(other.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
	return v.limiter.Allow()
}

func RateLimit(limiter *IPRateLimiter, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow(c.RealIP()) {
				logger.Warn("RateLimit: превышен лимит запросов", zap.String("ip", c.RealIP()), zap.String("path", c.Path()))
				return utils.ErrorResponse(c, apperrors.NewHttpError(http.StatusTooManyRequests, "Слишком много запросов, повторите позже", nil, nil), logger)
			}
			return next(c)
		}
	}
}
