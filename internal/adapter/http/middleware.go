package adapthttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"mealtrack/internal/app"
	"mealtrack/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

func userFromContext(r *http.Request) *domain.User {
	u, _ := r.Context().Value(userContextKey).(*domain.User)
	return u
}

// authMiddleware validates session tokens and forward auth headers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.disableAuth {
			ctx := context.WithValue(r.Context(), userContextKey, s.devUser)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// A trusted reverse proxy may assert the user.
		if remoteUser := r.Header.Get("Remote-User"); remoteUser != "" && s.opts.TrustForwardAuth {
			user, err := s.svc.Auth.ValidateForwardAuth(r.Context(), remoteUser)
			if err == nil && user != nil {
				ctx := context.WithValue(r.Context(), userContextKey, user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		cookie, err := r.Cookie("session")
		if err != nil {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}

		user, err := s.svc.Auth.ValidateSession(r.Context(), cookie.Value, r.UserAgent())
		if errors.Is(err, app.ErrSessionNotFound) || errors.Is(err, app.ErrSessionExpired) || errors.Is(err, app.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs one line per request and counts it.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.opts.Metrics.ObserveHTTP(r.Method, strconv.Itoa(status))
		s.log.Info("http request",
			zap.String("method", r.Method),
			zapPath(r),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zapRequestID(r),
		)
	})
}

func zapRequestID(r *http.Request) zap.Field {
	return zap.String("request_id", chimiddleware.GetReqID(r.Context()))
}

func zapPath(r *http.Request) zap.Field {
	return zap.String("path", r.URL.Path)
}
