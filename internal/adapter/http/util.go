package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"

	"go.uber.org/zap"

	"mealtrack/internal/app"
	"mealtrack/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeServiceError maps an application error onto its HTTP status.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zapRequestID(r), zapPath(r), zap.Error(err))
		if errors.Is(err, domain.ErrTotalUnavailable) {
			// The entries are stored; the client must not retry the commit.
			writeError(w, status, domain.ErrTotalUnavailable)
			return
		}
		if status == http.StatusInternalServerError {
			// Storage and orchestration details stay in the log.
			writeError(w, status, errors.New("internal error"))
			return
		}
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProfileNotFound), errors.Is(err, domain.ErrFoodNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRecognition):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func spaFromDisk(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	indexPath := path.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := path.Clean(r.URL.Path)
		if reqPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		staticPath := path.Join(dir, reqPath)
		if _, err := os.Stat(staticPath); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, indexPath)
	})
}
