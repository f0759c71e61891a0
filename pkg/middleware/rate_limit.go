package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/dropvault/pkg/configs"
)

const (
	cleanupInterval   = 10 * time.Minute
	maxLimiterEntries = 10000
)

// RateLimitMiddleware 返回一个基于配置的限流中间件.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return skip
	}

	return newLimiter(cfg.RPS, cfg.Burst, cfg.Key).handle
}

// UploadRateLimitMiddleware 上传接口单独使用的限流，速率取自 ForUpload.
func UploadRateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	rps, burst := cfg.ForUpload()
	if !cfg.Enabled || rps <= 0 {
		return skip
	}

	return newLimiter(rps, burst, cfg.Key).handle
}

// limiter 按 key 维度持有令牌桶：global、ip 或 header:Header-Name.
type limiter struct {
	rps     rate.Limit
	burst   int
	keyMode string
	global  *rate.Limiter

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastGC   time.Time
}

func newLimiter(rps float64, burst int, key string) *limiter {
	l := &limiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyMode:  strings.ToLower(strings.TrimSpace(key)),
		limiters: map[string]*rate.Limiter{},
		lastGC:   time.Now(),
	}

	if l.keyMode == "" || l.keyMode == "global" {
		l.global = rate.NewLimiter(l.rps, burst)
	}

	return l
}

func (l *limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 不做逐个访问时间统计，map 过大时整体重置
	if time.Since(l.lastGC) > cleanupInterval && len(l.limiters) > maxLimiterEntries {
		l.limiters = map[string]*rate.Limiter{}
		l.lastGC = time.Now()
	}

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}

	return lim
}

func (l *limiter) key(c *gin.Context) string {
	key := ""

	if h, ok := strings.CutPrefix(l.keyMode, "header:"); ok {
		key = c.GetHeader(h)
	}

	if key == "" {
		key = clientIP(c)
	}

	if key == "" {
		key = "unknown"
	}

	return key
}

func (l *limiter) handle(c *gin.Context) {
	lim := l.global
	if lim == nil {
		lim = l.get(l.key(c))
	}

	if !lim.Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			gin.H{"error": "rate limit exceeded, request too frequent, please try again later"})

		return
	}

	c.Next()
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		// 进一步尝试从 RemoteAddr
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = c.Request.RemoteAddr
		}
	}

	return ip
}
