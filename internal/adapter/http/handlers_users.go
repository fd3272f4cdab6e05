package adapthttp

import (
	"errors"
	"net/http"
	"time"

	"mealtrack/internal/domain"
)

func mealTypeNames() []string {
	out := make([]string, len(domain.MealTypes))
	for i, mt := range domain.MealTypes {
		out[i] = string(mt)
	}
	return out
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	profile, err := s.svc.Profile.Get(r.Context(), user.Username)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.Name,
		"profile":  profile,
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var body struct {
		HeightCm float64 `json:"heightCm"`
		WeightKg float64 `json:"weightKg"`
		Gender   string  `json:"gender"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := s.svc.Profile.Update(r.Context(), user.Username, body.HeightCm, body.WeightKg, body.Gender)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": view})
}

func (s *Server) handleTargetCalories(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	target, err := s.svc.Budget.Target(r.Context(), user.Username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targetCalories": target})
}

func (s *Server) handleChartsDaily(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	days := intQuery(r, "days", 30)

	points, err := s.svc.History.GetDaily(r.Context(), user.Username, days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days":  len(points),
		"today": domain.BudgetDay(time.Now()),
		"items": points,
	})
}
