package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/metrics"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

// HistoryLimit caps how many distinct past meals the history tier returns.
const HistoryLimit = 10

// NutritionProvider is the external food database. *nutrition.Client
// satisfies it.
type NutritionProvider interface {
	Search(ctx context.Context, query string) ([]model.FoodProduct, error)
	Product(ctx context.Context, barcode string) (*model.FoodProduct, error)
}

// FoodService answers food searches, cheapest source first:
//
//  1. exact     search_cache row for the normalised query
//  2. prefix    shortest cached query that starts with it ("poll" → "pollo")
//  3. history   meals anyone has logged, scaled back to per-100g
//  4. none      nothing found; the client may then force a live search
//
// A live search (SearchLive) goes straight to the NutritionProvider and
// writes non-empty results back to the cache, so the next lookup for the
// same query is an exact hit.
type FoodService struct {
	cache    repository.SearchCacheRepository
	history  repository.MealHistorySearcher
	provider NutritionProvider
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewFoodService(
	cache repository.SearchCacheRepository,
	history repository.MealHistorySearcher,
	provider NutritionProvider,
	m *metrics.Metrics,
	logger *slog.Logger,
) *FoodService {
	return &FoodService{
		cache:    cache,
		history:  history,
		provider: provider,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// NormalizeQuery is the cache key form of a search query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Resolve answers query from local data only. It never calls the
// NutritionProvider. A miss is Resolution{Results: nil, Source: "none"}.
func (s *FoodService) Resolve(ctx context.Context, query string) (*model.Resolution, error) {
	q := NormalizeQuery(query)
	if q == "" {
		return nil, apperror.ValidationFailed("q", "Search query is required")
	}

	res, err := s.resolve(ctx, q)
	if err != nil {
		return nil, err
	}

	s.metrics.Resolution(string(res.Source))
	s.logger.Debug("search resolved",
		slog.String("query", q),
		slog.String("source", string(res.Source)),
		slog.Int("results", len(res.Results)),
	)
	return res, nil
}

func (s *FoodService) resolve(ctx context.Context, q string) (*model.Resolution, error) {
	entry, err := s.cache.GetCachedSearch(ctx, q)
	switch {
	case err == nil && len(entry.Results) > 0:
		return &model.Resolution{Results: entry.Results, Source: model.SourceExact}, nil
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, err
	}

	entry, err = s.cache.GetShortestPrefixMatch(ctx, q)
	switch {
	case err == nil && len(entry.Results) > 0:
		return &model.Resolution{Results: entry.Results, Source: model.SourcePrefix}, nil
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, err
	}

	meals, err := s.history.SearchMealHistory(ctx, q, HistoryLimit)
	if err != nil {
		return nil, err
	}
	if len(meals) > 0 {
		return &model.Resolution{Results: historyProducts(meals, s.now()), Source: model.SourceHistory}, nil
	}

	return &model.Resolution{Results: nil, Source: model.SourceNone}, nil
}

// historyProducts turns logged servings back into per-100g products.
func historyProducts(meals []model.MealEntry, now time.Time) []model.FoodProduct {
	stamp := now.UnixMilli()
	out := make([]model.FoodProduct, 0, len(meals))

	for i, m := range meals {
		serving := m.ServingSize
		if serving <= 0 {
			serving = 100
		}
		factor := 100 / serving

		out = append(out, model.FoodProduct{
			ID:       fmt.Sprintf("hist-%d-%d", i, stamp),
			Name:     m.Name,
			Brand:    m.Brand,
			Calories: math.Round(m.Calories * factor),
			Macros: model.Macros{
				Proteins: round1(m.Proteins * factor),
				Carbs:    round1(m.Carbs * factor),
				Fats:     round1(m.Fats * factor),
			},
			ImageURL: m.ImageURL,
		})
	}
	return out
}

// SearchLive queries the external food database directly.
//
// On success the results are tagged "api" and, when non-empty, cached under
// the normalised query; a failed cache write is only logged. On failure the
// cache is left alone and the local tiers are tried instead. Only when they
// have nothing either does the caller get apperror.ErrUpstream.
func (s *FoodService) SearchLive(ctx context.Context, query string) (*model.Resolution, error) {
	q := NormalizeQuery(query)
	if q == "" {
		return nil, apperror.ValidationFailed("q", "Search query is required")
	}

	results, err := s.provider.Search(ctx, q)
	if err != nil {
		s.logger.Warn("live search failed, falling back to local data",
			slog.String("query", q),
			slog.String("error", err.Error()),
		)

		res, rerr := s.Resolve(ctx, q)
		if rerr != nil {
			return nil, rerr
		}
		if len(res.Results) > 0 {
			return res, nil
		}
		return nil, apperror.Upstream("Food database is unavailable and no cached results exist", err)
	}

	if len(results) > 0 {
		entry := &model.SearchCacheEntry{Query: q, Results: results}
		if err := s.cache.UpsertCachedSearch(ctx, entry); err != nil {
			s.logger.Error("failed to cache live results",
				slog.String("query", q),
				slog.String("error", err.Error()),
			)
		}
	}

	s.metrics.Resolution(string(model.SourceAPI))
	return &model.Resolution{Results: results, Source: model.SourceAPI}, nil
}

// Store caches results the client fetched itself, replacing whatever was
// cached for the same normalised query.
func (s *FoodService) Store(ctx context.Context, query string, results []model.FoodProduct) error {
	q := NormalizeQuery(query)
	if q == "" || results == nil {
		return apperror.ValidationFailed("", "Query and results are required")
	}

	return s.cache.UpsertCachedSearch(ctx, &model.SearchCacheEntry{Query: q, Results: results})
}

// LookupBarcode fetches a single product by EAN/UPC code.
func (s *FoodService) LookupBarcode(ctx context.Context, code string) (*model.FoodProduct, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.Trim(code, "0123456789") != "" {
		return nil, apperror.ValidationFailed("barcode", "Barcode must contain digits only")
	}
	return s.provider.Product(ctx, code)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
