package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/org/authcore/internal/auth"
	"github.com/org/authcore/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

// responseRecorder captures the status code and runs beforeHeader right before
// the header is flushed.
type responseRecorder struct {
	http.ResponseWriter
	statusCode   int
	wroteHeader  bool
	beforeHeader func(http.Header)
}

func newRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.wroteHeader {
		return
	}
	rr.wroteHeader = true
	rr.statusCode = code
	if rr.beforeHeader != nil {
		rr.beforeHeader(rr.Header())
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	return rr.ResponseWriter.Write(b)
}

func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// requestIDMiddleware attaches a UUID request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// accessLogMiddleware logs every request and reports the handling time in X-Process-Time-ms.
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := newRecorder(w)
		rr.beforeHeader = func(h http.Header) {
			h.Set("X-Process-Time-ms", fmt.Sprintf("%.2f", float64(time.Since(start).Microseconds())/1000))
		}
		next.ServeHTTP(rr, r)

		evt := log.Info()
		if rr.statusCode >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("logger", "http.access").
			Str("request_id", requestIDFromCtx(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rr.statusCode).
			Dur("duration", time.Since(start)).
			Str("client", clientHost(r)).
			Msg("request")
	})
}

// recoverMiddleware turns handler panics into a category-only 500.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := newRecorder(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().Str("logger", "http").
				Str("request_id", requestIDFromCtx(r.Context())).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			if !rr.wroteHeader {
				writeFault(rr, "panic")
			}
		}()
		next.ServeHTTP(rr, r)
	})
}

// corsMiddleware allows the configured origins. "*" allows any origin; the
// origin is echoed back since credentials are allowed.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := slices.Contains(origins, "*")
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	const allowedMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			_, ok := allowed[origin]
			if !allowAll && !ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				}
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware rejects requests whose (client, path) window is full.
func rateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientHost(r)
			if err := limiter.Check(client, r.URL.Path); err != nil {
				log.Warn().Str("logger", "ratelimit").
					Str("client", client).
					Str("path", r.URL.Path).
					Msg("rate limit exceeded")
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireMiddleware runs guard on the bearer token and attaches the principal to the context.
func requireMiddleware(guard auth.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := guard(r.Context(), bearerToken(r))
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// optionalUserMiddleware attaches the principal when the bearer token resolves and
// silently continues as anonymous otherwise.
func optionalUserMiddleware(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := resolver.ResolveOptional(r.Context(), bearerToken(r)); user != nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
