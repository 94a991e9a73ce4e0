// Package handler contains HTTP request handlers for the food diary API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path values, query params, JSON body)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic. Each handler depends on a small
// interface declared here rather than on the concrete service, so tests can
// swap in a mock without touching storage.
package handler

import (
	"context"
	"net/http"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/auth"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/service"
)

// AccountService is the account lifecycle used by AuthHandler.
type AccountService interface {
	Signup(ctx context.Context, email, password, name string) error
	Verify(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// FoodService resolves searches and barcodes.
type FoodService interface {
	Resolve(ctx context.Context, query string) (*model.Resolution, error)
	SearchLive(ctx context.Context, query string) (*model.Resolution, error)
	Store(ctx context.Context, query string, results []model.FoodProduct) error
	LookupBarcode(ctx context.Context, code string) (*model.FoodProduct, error)
}

// MealService manages a user's diary.
type MealService interface {
	List(ctx context.Context, userID, date string) ([]model.MealEntry, error)
	Add(ctx context.Context, userID string, entry *model.MealEntry) (string, error)
	Delete(ctx context.Context, userID, id string) (int64, error)
	Summary(ctx context.Context, userID, date string) (*model.DailySummary, error)
}

// ProfileService reads and writes body metrics.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, in service.ProfileUpdate) (*model.Profile, error)
	DisplayName(ctx context.Context, userID string) (string, error)
}

// ImageService proxies product images through the local cache.
type ImageService interface {
	Get(ctx context.Context, rawURL string) (*model.CachedImage, error)
	Clear(ctx context.Context) (int, error)
}

// requireUser pulls the authenticated user id placed in the context by
// auth.RequireAuth. Routes behind that middleware always have one; the
// check covers handlers mounted without it by mistake.
func requireUser(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok || id == "" {
		return "", apperror.Unauthorized("Authentication required")
	}
	return id, nil
}
