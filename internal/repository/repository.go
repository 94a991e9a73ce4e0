package repository

import (
	"context"
	"time"

	"github.com/sakif/food-diary/internal/model"
)

// UserRepository is the credential store.
type UserRepository interface {
	// CreateUser returns apperror.ErrDuplicateEmail when the email is taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// MarkVerified returns apperror.ErrNotFound when no user has that email.
	MarkVerified(ctx context.Context, email string) error
	SetResetToken(ctx context.Context, userID, token string, expiry time.Time) error
	// ConsumeResetToken sets the new hash and clears the reset token in one
	// statement, only if token is still the stored one and unexpired at now.
	// Returns apperror.ErrNotFound when nothing matched.
	ConsumeResetToken(ctx context.Context, userID, token, passwordHash string, now time.Time) error
	UpdateDisplayName(ctx context.Context, userID, name string) error
}

type ProfileRepository interface {
	// GetProfile returns apperror.ErrNotFound when the user never saved one.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, profile *model.Profile) error
}

type MealRepository interface {
	ListMealsByDate(ctx context.Context, userID, date string) ([]model.MealEntry, error)
	InsertMeal(ctx context.Context, entry *model.MealEntry) error
	// DeleteMeal reports how many rows went away; 0 is not an error.
	DeleteMeal(ctx context.Context, userID, id string) (int64, error)
}

// MealHistorySearcher searches every user's logged meals by name or brand.
type MealHistorySearcher interface {
	SearchMealHistory(ctx context.Context, term string, limit int) ([]model.MealEntry, error)
}

type SearchCacheRepository interface {
	// GetCachedSearch returns apperror.ErrNotFound on a miss.
	GetCachedSearch(ctx context.Context, query string) (*model.SearchCacheEntry, error)
	// GetShortestPrefixMatch returns the shortest cached key starting with
	// prefix, or apperror.ErrNotFound.
	GetShortestPrefixMatch(ctx context.Context, prefix string) (*model.SearchCacheEntry, error)
	UpsertCachedSearch(ctx context.Context, entry *model.SearchCacheEntry) error
}

type ImageCache interface {
	// GetImage returns apperror.ErrNotFound on a miss.
	GetImage(ctx context.Context, url string) (*model.CachedImage, error)
	PutImage(ctx context.Context, img *model.CachedImage) error
	ClearImages(ctx context.Context) (int, error)
}
