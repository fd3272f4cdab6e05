package adapthttp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mealtrack/internal/domain"
)

// imageExtensions maps accepted upload content types to file extensions.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("missing image field"))
		return
	}
	defer file.Close() //nolint:errcheck

	// Sniff the content instead of trusting the client's header.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		writeError(w, http.StatusBadRequest, errors.New("empty image"))
		return
	}
	ext, ok := imageExtensions[http.DetectContentType(head[:n])]
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("only jpeg and png images are accepted"))
		return
	}

	path, err := s.saveUpload(io.MultiReader(bytes.NewReader(head[:n]), file), ext)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.svc.Scan.Scan(r.Context(), path)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"image":         filepath.Base(path),
		"detections":    result.Detections,
		"detectedFoods": result.Labels,
		"foodInfo":      result.Foods,
	})
}

func (s *Server) saveUpload(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.opts.UploadDir, uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	s.log.Debug("upload stored", zap.String("path", path))
	return path, nil
}

func (s *Server) handleCommitMeal(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var body struct {
		Date     string   `json:"date"`
		MealType string   `json:"mealType"`
		FoodIDs  []string `json:"foodIds"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Date == "" {
		body.Date = domain.BudgetDay(time.Now())
	}

	res, err := s.svc.Ledger.Commit(r.Context(), user.Username, body.Date, domain.MealType(body.MealType), body.FoodIDs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	day := r.URL.Query().Get("date")
	if day == "" {
		day = domain.BudgetDay(time.Now())
	}

	total, err := s.svc.Ledger.Query(r.Context(), user.Username, day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if total == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no meals recorded on %s", day))
		return
	}
	writeJSON(w, http.StatusOK, total)
}

func (s *Server) handleRemaining(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	report, err := s.svc.Remaining.Remaining(r.Context(), user.Username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	foods, err := s.svc.Remaining.Recommend(r.Context(), user.Username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": foods})
}

// handleFood returns one catalog record by its canonical name.
func (s *Server) handleFood(w http.ResponseWriter, r *http.Request) {
	food, err := s.svc.Catalog.Lookup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, food)
}
