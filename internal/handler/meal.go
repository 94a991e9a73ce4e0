package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/food-diary/internal/model"
)

// MealHandler serves the authenticated /api/meals routes.
//
// Every route reads the user id that auth.RequireAuth put in the context;
// a user never names whose diary they are touching.
type MealHandler struct {
	meals  MealService
	logger *slog.Logger
}

// NewMealHandler creates a new MealHandler.
func NewMealHandler(meals MealService, logger *slog.Logger) *MealHandler {
	return &MealHandler{meals: meals, logger: logger}
}

// addMealRequest is the body of POST /api/meals. It is decoded into its own
// DTO so a client cannot set id, user_id or created_at.
type addMealRequest struct {
	Date        string         `json:"date"`
	MealType    model.MealType `json:"meal_type"`
	Name        string         `json:"name"`
	Brand       string         `json:"brand"`
	ServingSize float64        `json:"serving_size"`
	Calories    float64        `json:"calories"`
	Proteins    float64        `json:"proteins"`
	Carbs       float64        `json:"carbs"`
	Fats        float64        `json:"fats"`
	ImageURL    string         `json:"image_url"`
}

type addMealResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type deleteMealResponse struct {
	Message string `json:"message"`
	Changes int64  `json:"changes"`
}

// HandleList returns the user's entries for one day.
//
// HTTP: GET /api/meals/{date}
// RESPONSE: 200 [MealEntry, ...] (an empty day is [], never null)
func (h *MealHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	meals, err := h.meals.List(r.Context(), userID, r.PathValue("date"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if meals == nil {
		meals = []model.MealEntry{}
	}

	writeJSON(w, http.StatusOK, meals)
}

// HandleSummary returns the day's totals against the user's goal.
//
// HTTP: GET /api/meals/{date}/summary
func (h *MealHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	summary, err := h.meals.Summary(r.Context(), userID, r.PathValue("date"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleAdd logs a meal entry.
//
// HTTP: POST /api/meals
// REQUEST BODY: {"date": "2024-05-01", "meal_type": "lunch", "name": "Pasta", "calories": 350, ...}
// RESPONSE: 200 {"id": "...", "message": "Meal added successfully"}
func (h *MealHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req addMealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	entry := &model.MealEntry{
		Date:        req.Date,
		MealType:    req.MealType,
		Name:        req.Name,
		Brand:       req.Brand,
		ServingSize: req.ServingSize,
		Calories:    req.Calories,
		Proteins:    req.Proteins,
		Carbs:       req.Carbs,
		Fats:        req.Fats,
		ImageURL:    req.ImageURL,
	}

	id, err := h.meals.Add(r.Context(), userID, entry)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, addMealResponse{ID: id, Message: "Meal added successfully"})
}

// HandleDelete removes one of the user's entries.
//
// HTTP: DELETE /api/meals/{id}
//
// Deleting an entry that does not exist, or belongs to someone else, is not
// an error: the response reports "changes": 0.
func (h *MealHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	n, err := h.meals.Delete(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteMealResponse{Message: "Meal deleted", Changes: n})
}
