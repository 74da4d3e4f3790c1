package ratelimit

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"summary-relay/middleware/ratelimit/application"
	"summary-relay/middleware/ratelimit/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Store              domain.CounterStore
	Window             domain.Window
	Stats              domain.StatsStore
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	// StandardHeaders sets RateLimit-Policy/Limit/Remaining/Reset.
	StandardHeaders bool
	// LegacyHeaders sets X-RateLimit-Limit/Remaining/Reset.
	LegacyHeaders bool
	Logger        *zap.Logger
	// LogEvery bounds how often rejections are logged. Default 10s.
	LogEvery time.Duration
	Now      func() time.Time
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// first X-Forwarded-For hop is the original client
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Limiter is one fixed window exposed as HTTP middleware.
type Limiter struct {
	opts    Options
	svc     application.Service
	log     *zap.Logger
	logRate *rate.Sometimes
}

func NewLimiter(opts Options) *Limiter {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Window.Message == "" {
		opts.Window.Message = http.StatusText(opts.RejectStatus)
	}

	return &Limiter{
		opts: opts,
		svc: application.Service{
			Store:  opts.Store,
			Window: opts.Window,
			Now:    opts.Now,
		},
		log:     opts.Logger.With(zap.String("window", opts.Window.Name)),
		logRate: &rate.Sometimes{First: 1, Interval: opts.LogEvery},
	}
}

// Middleware is a shortcut for NewLimiter(opts).Handler.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	return NewLimiter(opts).Handler
}

func (l *Limiter) Window() domain.Window { return l.opts.Window }

// Identifier returns the partition key the limiter uses for r.
func (l *Limiter) Identifier(r *http.Request) string { return l.opts.KeyFn(r) }

// Peek reports the quota of identifier without consuming it.
func (l *Limiter) Peek(ctx context.Context, identifier string) (domain.Decision, error) {
	return l.svc.Peek(ctx, identifier)
}

func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	return l.svc.Reset(ctx, identifier)
}

func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.opts.KeyFn(r)

		dec, err := l.svc.Decide(r.Context(), key)
		if err != nil {
			l.log.Warn("rate limit store failed, allowing request",
				zap.String("key", key),
				zap.Error(err))
		}

		if l.opts.Stats != nil {
			ev := domain.StatsEvent{
				Key:     domain.NewKey(l.opts.Window.Name, key),
				Window:  l.opts.Window.Name,
				Allowed: dec.Allowed,
				Method:  r.Method,
				Path:    r.URL.Path,
				At:      l.opts.Now(),
			}
			if err := l.opts.Stats.Record(r.Context(), ev); err != nil {
				l.log.Debug("rate limit stats not recorded", zap.Error(err))
			}
		}

		if dec.Limit > 0 {
			l.setHeaders(w, dec)
		}

		if !dec.Allowed {
			l.logRate.Do(func() {
				l.log.Info("rate limit exceeded",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
					zap.Int("limit", dec.Limit),
					zap.Time("reset_at", dec.ResetAt))
			})

			w.Header().Set("Retry-After", formatInt(ceilSeconds(dec.RetryAfter)))
			writeError(w, l.opts.RejectStatus, l.opts.Window.Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) setHeaders(w http.ResponseWriter, dec domain.Decision) {
	h := w.Header()
	if l.opts.StandardHeaders {
		h.Set("RateLimit-Policy", formatInt(dec.Limit)+";w="+formatInt(ceilSeconds(l.opts.Window.Duration)))
		h.Set("RateLimit-Limit", formatInt(dec.Limit))
		h.Set("RateLimit-Remaining", formatInt(dec.Remaining))
		h.Set("RateLimit-Reset", formatInt(ceilSeconds(dec.ResetAt.Sub(l.opts.Now()))))
	}
	if l.opts.LegacyHeaders {
		h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
		h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
		h.Set("X-RateLimit-Reset", formatInt64(int64(math.Ceil(float64(dec.ResetAt.UnixMilli())/1000))))
	}
}

// ErrorBody is the JSON shape of a rejection, shared with the rest of the API.
type ErrorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: msg})
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
