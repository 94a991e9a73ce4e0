package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

// GoalSource supplies a user's daily kcal goal. *ProfileService satisfies it.
type GoalSource interface {
	Goal(ctx context.Context, userID string) (int, error)
}

// MealService is the per-user diary. Every operation is scoped to the
// caller's user ID; entries of other users are invisible.
type MealService struct {
	meals  repository.MealRepository
	goals  GoalSource
	logger *slog.Logger
}

func NewMealService(meals repository.MealRepository, goals GoalSource, logger *slog.Logger) *MealService {
	return &MealService{meals: meals, goals: goals, logger: logger}
}

// List returns the day's entries in the order they were logged.
func (s *MealService) List(ctx context.Context, userID, date string) ([]model.MealEntry, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	return s.meals.ListMealsByDate(ctx, userID, date)
}

// Add logs entry for userID and returns the new entry ID. entry.ID,
// entry.UserID and entry.CreatedAt are overwritten.
func (s *MealService) Add(ctx context.Context, userID string, entry *model.MealEntry) (string, error) {
	entry.Name = strings.TrimSpace(entry.Name)
	entry.Brand = strings.TrimSpace(entry.Brand)
	if entry.Date == "" || entry.MealType == "" || entry.Name == "" {
		return "", apperror.ValidationFailed("", "Missing required fields: date, meal_type, and name are required")
	}
	if err := validateDate(entry.Date); err != nil {
		return "", err
	}
	if !entry.MealType.Valid() {
		return "", apperror.ValidationFailed("meal_type", "meal_type must be one of breakfast, lunch, dinner, snacks")
	}
	if entry.ServingSize < 0 || entry.Calories < 0 || entry.Proteins < 0 || entry.Carbs < 0 || entry.Fats < 0 {
		return "", apperror.ValidationFailed("", "Serving size and nutrient values must not be negative")
	}

	entry.UserID = userID
	if err := s.meals.InsertMeal(ctx, entry); err != nil {
		return "", err
	}

	s.logger.Info("meal added",
		slog.String("userID", userID),
		slog.String("mealID", entry.ID),
		slog.String("date", entry.Date),
	)
	return entry.ID, nil
}

// Delete removes one of the user's entries and reports how many rows went.
// An unknown ID, or one owned by someone else, yields 0 and no error.
func (s *MealService) Delete(ctx context.Context, userID, id string) (int64, error) {
	if strings.TrimSpace(id) == "" {
		return 0, apperror.ValidationFailed("id", "Meal id is required")
	}
	return s.meals.DeleteMeal(ctx, userID, id)
}

// Summary totals a day against the user's goal.
func (s *MealService) Summary(ctx context.Context, userID, date string) (*model.DailySummary, error) {
	entries, err := s.List(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	goal, err := s.goals.Goal(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum := &model.DailySummary{
		Date:    date,
		Goal:    goal,
		ByMeal:  make(map[model.MealType]float64, len(model.MealTypes)),
		Entries: len(entries),
	}
	for _, mt := range model.MealTypes {
		sum.ByMeal[mt] = 0
	}
	for _, e := range entries {
		sum.Calories += e.Calories
		sum.Proteins += e.Proteins
		sum.Carbs += e.Carbs
		sum.Fats += e.Fats
		sum.ByMeal[e.MealType] += e.Calories
	}

	sum.Calories = round1(sum.Calories)
	sum.Proteins = round1(sum.Proteins)
	sum.Carbs = round1(sum.Carbs)
	sum.Fats = round1(sum.Fats)
	for mt, v := range sum.ByMeal {
		sum.ByMeal[mt] = round1(v)
	}
	sum.Remaining = round1(float64(goal) - sum.Calories)
	return sum, nil
}

func validateDate(date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return apperror.ValidationFailed("date", "Date must be formatted as YYYY-MM-DD")
	}
	return nil
}
