package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/sakif/food-diary/internal/auth"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// asUser attaches an authenticated identity the way auth.RequireAuth would.
func asUser(r *http.Request, id string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), model.Identity{ID: id, Email: id + "@example.com", Name: "Ann"}))
}

// MockAccounts records the last call and returns canned results.
type MockAccounts struct {
	SignupArgs  []string
	VerifyToken string
	ResetArgs   []string
	LoginResult *service.LoginResult
	ForgotMsg   string
	Err         error
}

func (m *MockAccounts) Signup(_ context.Context, email, password, name string) error {
	m.SignupArgs = []string{email, password, name}
	return m.Err
}

func (m *MockAccounts) Verify(_ context.Context, token string) error {
	m.VerifyToken = token
	return m.Err
}

func (m *MockAccounts) Login(_ context.Context, _, _ string) (*service.LoginResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.LoginResult, nil
}

func (m *MockAccounts) ForgotPassword(_ context.Context, _ string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.ForgotMsg, nil
}

func (m *MockAccounts) ResetPassword(_ context.Context, token, newPassword string) error {
	m.ResetArgs = []string{token, newPassword}
	return m.Err
}

type MockMeals struct {
	UserID  string
	Date    string
	Added   *model.MealEntry
	Entries []model.MealEntry
	Day     *model.DailySummary
	Changes int64
	Err     error
}

func (m *MockMeals) List(_ context.Context, userID, date string) ([]model.MealEntry, error) {
	m.UserID, m.Date = userID, date
	return m.Entries, m.Err
}

func (m *MockMeals) Add(_ context.Context, userID string, entry *model.MealEntry) (string, error) {
	m.UserID, m.Added = userID, entry
	if m.Err != nil {
		return "", m.Err
	}
	return "meal-1", nil
}

func (m *MockMeals) Delete(_ context.Context, userID, _ string) (int64, error) {
	m.UserID = userID
	return m.Changes, m.Err
}

func (m *MockMeals) Summary(_ context.Context, userID, date string) (*model.DailySummary, error) {
	m.UserID, m.Date = userID, date
	return m.Day, m.Err
}

type MockFoods struct {
	Query      string
	Resolution *model.Resolution
	Stored     []model.FoodProduct
	Product    *model.FoodProduct
	Err        error
}

func (m *MockFoods) Resolve(_ context.Context, q string) (*model.Resolution, error) {
	m.Query = q
	return m.Resolution, m.Err
}

func (m *MockFoods) SearchLive(_ context.Context, q string) (*model.Resolution, error) {
	m.Query = q
	return m.Resolution, m.Err
}

func (m *MockFoods) Store(_ context.Context, q string, results []model.FoodProduct) error {
	m.Query, m.Stored = q, results
	return m.Err
}

func (m *MockFoods) LookupBarcode(_ context.Context, code string) (*model.FoodProduct, error) {
	m.Query = code
	return m.Product, m.Err
}

type MockProfiles struct {
	Profile *model.Profile
	Got     service.ProfileUpdate
	Name    string
	Err     error
}

func (m *MockProfiles) Get(_ context.Context, _ string) (*model.Profile, error) {
	return m.Profile, m.Err
}

func (m *MockProfiles) Update(_ context.Context, userID string, in service.ProfileUpdate) (*model.Profile, error) {
	m.Got = in
	if m.Err != nil {
		return nil, m.Err
	}
	if in.Name != nil {
		m.Name = *in.Name
	}
	return &model.Profile{UserID: userID, Weight: in.Weight, DailyKcalGoal: 2000}, nil
}

func (m *MockProfiles) DisplayName(_ context.Context, _ string) (string, error) {
	return m.Name, m.Err
}

type MockImages struct {
	Image   *model.CachedImage
	Cleared int
	Err     error
}

func (m *MockImages) Get(_ context.Context, _ string) (*model.CachedImage, error) {
	return m.Image, m.Err
}

func (m *MockImages) Clear(_ context.Context) (int, error) {
	return m.Cleared, m.Err
}

type MockPinger struct{ Err error }

func (m MockPinger) Ping(context.Context) error { return m.Err }
