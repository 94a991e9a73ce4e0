package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

// ActivityLevels are the accepted activity multipliers, from sedentary to
// very active.
var ActivityLevels = []float64{1.2, 1.375, 1.55, 1.725, 1.9}

// Validation ranges for profile input: kg, cm, years and kcal.
const (
	MinWeight, MaxWeight = 20, 400
	MinHeight, MaxHeight = 100, 250
	MinAge, MaxAge       = 10, 120
	MinGoal, MaxGoal     = 800, 10000
)

// CalculateGoal is the Mifflin-St Jeor BMR times the activity multiplier,
// rounded to whole kcal.
func CalculateGoal(weight, height float64, age int, gender model.Gender, activity float64) int {
	bmr := 10*weight + 6.25*height - 5*float64(age)
	if gender == model.GenderFemale {
		bmr -= 161
	} else {
		bmr += 5
	}
	return int(math.Round(bmr * activity))
}

// DefaultProfile is what a user who never saved a profile sees.
func DefaultProfile(userID string) *model.Profile {
	p := &model.Profile{
		UserID:        userID,
		Weight:        70,
		Height:        170,
		Age:           30,
		Gender:        model.GenderMale,
		ActivityLevel: 1.2,
	}
	p.DailyKcalGoal = CalculateGoal(p.Weight, p.Height, p.Age, p.Gender, p.ActivityLevel)
	return p
}

// ProfileUpdate is the input of ProfileService.Update. A nil or blank Name
// leaves the display name alone.
type ProfileUpdate struct {
	Name          *string
	Weight        float64
	Height        float64
	Age           int
	Gender        model.Gender
	ActivityLevel float64
	UseCustomGoal bool
	DailyKcalGoal int
}

type ProfileService struct {
	profiles repository.ProfileRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

func NewProfileService(profiles repository.ProfileRepository, users repository.UserRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, users: users, logger: logger}
}

// Get returns the saved profile, or DefaultProfile if there is none.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return DefaultProfile(userID), nil
		}
		return nil, err
	}
	return p, nil
}

// DisplayName reads the name from the user record. The name in the session
// token is fixed at login and goes stale after a profile update.
func (s *ProfileService) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.DisplayName, nil
}

// Goal is the user's daily kcal target.
func (s *ProfileService) Goal(ctx context.Context, userID string) (int, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.DailyKcalGoal, nil
}

// Update validates and saves the profile. Unless UseCustomGoal is set the
// goal is recomputed from the body metrics and any submitted goal is ignored.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (*model.Profile, error) {
	if err := validateProfile(in); err != nil {
		return nil, err
	}

	p := &model.Profile{
		UserID:        userID,
		Weight:        in.Weight,
		Height:        in.Height,
		Age:           in.Age,
		Gender:        in.Gender,
		ActivityLevel: in.ActivityLevel,
		UseCustomGoal: in.UseCustomGoal,
	}
	if in.UseCustomGoal {
		p.DailyKcalGoal = in.DailyKcalGoal
	} else {
		p.DailyKcalGoal = CalculateGoal(in.Weight, in.Height, in.Age, in.Gender, in.ActivityLevel)
	}

	if err := s.profiles.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}

	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			if err := s.users.UpdateDisplayName(ctx, userID, name); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("profile updated",
		slog.String("userID", userID),
		slog.Int("goal", p.DailyKcalGoal),
	)
	return p, nil
}

func validateProfile(in ProfileUpdate) error {
	switch {
	case in.Weight < MinWeight || in.Weight > MaxWeight:
		return apperror.ValidationFailed("weight", "Weight must be between 20 and 400 kg")
	case in.Height < MinHeight || in.Height > MaxHeight:
		return apperror.ValidationFailed("height", "Height must be between 100 and 250 cm")
	case in.Age < MinAge || in.Age > MaxAge:
		return apperror.ValidationFailed("age", "Age must be between 10 and 120")
	case in.Gender != model.GenderMale && in.Gender != model.GenderFemale:
		return apperror.ValidationFailed("gender", "Gender must be male or female")
	case !validActivity(in.ActivityLevel):
		return apperror.ValidationFailed("activity_level", "Unknown activity level")
	case in.UseCustomGoal && (in.DailyKcalGoal < MinGoal || in.DailyKcalGoal > MaxGoal):
		return apperror.ValidationFailed("daily_kcal_goal", "Daily goal must be between 800 and 10000 kcal")
	}
	return nil
}

func validActivity(v float64) bool {
	for _, a := range ActivityLevels {
		if math.Abs(a-v) < 1e-9 {
			return true
		}
	}
	return false
}
