package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/service"
)

// ProfileHandler serves /api/user/profile for the authenticated user.
type ProfileHandler struct {
	profiles ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// profileResponse is the profile plus the display name. Embedding flattens
// the profile's fields into the same JSON object.
type profileResponse struct {
	*model.Profile
	Name string `json:"name,omitempty"`
}

// updateProfileRequest is the body of POST /api/user/profile. name is
// optional; when present and non-blank the display name changes too.
type updateProfileRequest struct {
	Name          *string      `json:"name"`
	Weight        float64      `json:"weight"`
	Height        float64      `json:"height"`
	Age           int          `json:"age"`
	Gender        model.Gender `json:"gender"`
	ActivityLevel float64      `json:"activity_level"`
	UseCustomGoal bool         `json:"use_custom_goal"`
	DailyKcalGoal int          `json:"daily_kcal_goal"`
}

// HandleGet returns the saved profile, or the defaults for a user who has
// never saved one.
//
// HTTP: GET /api/user/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	name, err := h.profiles.DisplayName(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Name: name})
}

// HandleUpdate saves body metrics and recomputes the goal.
//
// HTTP: POST /api/user/profile
// REQUEST BODY: {"weight": 70, "height": 170, "age": 30, "gender": "male",
// "activity_level": 1.2, "use_custom_goal": false, "daily_kcal_goal": 0, "name": "Ann"}
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	p, err := h.profiles.Update(r.Context(), userID, service.ProfileUpdate{
		Name:          req.Name,
		Weight:        req.Weight,
		Height:        req.Height,
		Age:           req.Age,
		Gender:        req.Gender,
		ActivityLevel: req.ActivityLevel,
		UseCustomGoal: req.UseCustomGoal,
		DailyKcalGoal: req.DailyKcalGoal,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	name, err := h.profiles.DisplayName(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Name: name})
}
