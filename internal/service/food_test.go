package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/metrics"
	"github.com/sakif/food-diary/internal/model"
)

type foodFixture struct {
	svc      *FoodService
	cache    *fakeSearchCache
	history  *fakeHistory
	provider *fakeProvider
	metrics  *metrics.Metrics
}

func newFoodFixture() *foodFixture {
	f := &foodFixture{
		cache:    newFakeSearchCache(),
		history:  &fakeHistory{},
		provider: &fakeProvider{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.svc = NewFoodService(f.cache, f.history, f.provider, f.metrics, testLogger())
	return f
}

func product(id, name string, kcal float64) model.FoodProduct {
	return model.FoodProduct{ID: id, Name: name, Calories: kcal}
}

func TestResolve_ExactHitSkipsProvider(t *testing.T) {
	f := newFoodFixture()
	f.cache.put("pollo", product("1", "Pollo", 120))

	res, err := f.svc.Resolve(context.Background(), "  POLLO ")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Source != model.SourceExact || len(res.Results) != 1 {
		t.Errorf("Resolve() = %+v, want one exact result", res)
	}
	if f.provider.searches != 0 {
		t.Errorf("provider called %d times, want 0", f.provider.searches)
	}
	if got := testutil.ToFloat64(f.metrics.Resolutions.WithLabelValues("exact")); got != 1 {
		t.Errorf("exact resolutions = %v, want 1", got)
	}
}

func TestResolve_PrefixPicksShortestKey(t *testing.T) {
	f := newFoodFixture()
	f.cache.put("pollo arrosto", product("long", "Pollo arrosto", 190))
	f.cache.put("pollo", product("short", "Pollo", 120))

	res, err := f.svc.Resolve(context.Background(), "poll")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Source != model.SourcePrefix {
		t.Fatalf("Source = %q, want prefix", res.Source)
	}
	if res.Results[0].ID != "short" {
		t.Errorf("picked %q, want the shortest key's results", res.Results[0].ID)
	}
}

func TestResolve_EmptyCachedResultsFallThrough(t *testing.T) {
	f := newFoodFixture()
	f.cache.put("banana")
	f.history.meals = []model.MealEntry{{Name: "Banana", ServingSize: 50, Calories: 45}}

	res, err := f.svc.Resolve(context.Background(), "banana")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Source != model.SourceHistory {
		t.Errorf("Source = %q, want history", res.Source)
	}
}

func TestResolve_HistoryNormalisesTo100g(t *testing.T) {
	f := newFoodFixture()
	f.history.meals = []model.MealEntry{
		{Name: "Banana", ServingSize: 50, Calories: 45, Proteins: 0.55, Carbs: 11.5, Fats: 0.15, ImageURL: "http://img/banana.jpg"},
	}
	f.svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	res, err := f.svc.Resolve(context.Background(), "ban")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Source != model.SourceHistory || len(res.Results) != 1 {
		t.Fatalf("Resolve() = %+v, want one history result", res)
	}

	p := res.Results[0]
	if p.Calories != 90 {
		t.Errorf("Calories = %v, want 90", p.Calories)
	}
	if p.Macros.Proteins != 1.1 || p.Macros.Carbs != 23 || p.Macros.Fats != 0.3 {
		t.Errorf("Macros = %+v, want {1.1 23 0.3}", p.Macros)
	}
	if p.ID != "hist-0-1700000000000" {
		t.Errorf("ID = %q", p.ID)
	}
	if p.ImageURL != "http://img/banana.jpg" {
		t.Errorf("ImageURL = %q", p.ImageURL)
	}
}

func TestResolve_HistoryZeroServingTreatedAs100(t *testing.T) {
	f := newFoodFixture()
	f.history.meals = []model.MealEntry{{Name: "Mela", ServingSize: 0, Calories: 52}}

	res, err := f.svc.Resolve(context.Background(), "mela")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Results[0].Calories != 52 {
		t.Errorf("Calories = %v, want 52", res.Results[0].Calories)
	}
}

func TestResolve_Miss(t *testing.T) {
	f := newFoodFixture()

	res, err := f.svc.Resolve(context.Background(), "quinoa")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Source != model.SourceNone || res.Results != nil {
		t.Errorf("Resolve() = %+v, want nil results with source none", res)
	}
	if f.provider.searches != 0 {
		t.Error("Resolve must not call the provider")
	}
}

func TestResolve_EmptyQuery(t *testing.T) {
	f := newFoodFixture()

	if _, err := f.svc.Resolve(context.Background(), "   "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestResolve_StorageErrorPropagates(t *testing.T) {
	f := newFoodFixture()
	f.cache.err = apperror.Storage("sqlite: getting cached search", errors.New("disk I/O error"))

	if _, err := f.svc.Resolve(context.Background(), "pasta"); !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("error = %v, want ErrStorage", err)
	}
}

func TestSearchLive_WritesBack(t *testing.T) {
	f := newFoodFixture()
	f.provider.results = []model.FoodProduct{product("8001", "Pasta", 359)}

	res, err := f.svc.SearchLive(context.Background(), " Pasta ")
	if err != nil {
		t.Fatalf("SearchLive() error = %v", err)
	}
	if res.Source != model.SourceAPI || len(res.Results) != 1 {
		t.Fatalf("SearchLive() = %+v, want one api result", res)
	}

	cached, err := f.cache.GetCachedSearch(context.Background(), "pasta")
	if err != nil {
		t.Fatalf("results not cached under normalised key: %v", err)
	}
	if cached.Results[0].ID != "8001" {
		t.Errorf("cached %+v", cached.Results)
	}

	// The next local lookup is an exact hit.
	again, err := f.svc.Resolve(context.Background(), "pasta")
	if err != nil || again.Source != model.SourceExact {
		t.Errorf("Resolve() after live search = %+v, %v; want exact", again, err)
	}
}

func TestSearchLive_EmptyResultsNotCached(t *testing.T) {
	f := newFoodFixture()
	f.provider.results = []model.FoodProduct{}

	res, err := f.svc.SearchLive(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("SearchLive() error = %v", err)
	}
	if res.Source != model.SourceAPI || len(res.Results) != 0 {
		t.Errorf("SearchLive() = %+v", res)
	}
	if f.cache.upserts != 0 {
		t.Errorf("upserts = %d, want 0", f.cache.upserts)
	}
}

func TestSearchLive_CacheWriteFailureIsNotFatal(t *testing.T) {
	f := newFoodFixture()
	f.provider.results = []model.FoodProduct{product("1", "Pasta", 359)}
	f.cache.upsertErr = errors.New("database is locked")

	res, err := f.svc.SearchLive(context.Background(), "pasta")
	if err != nil {
		t.Fatalf("SearchLive() error = %v, want nil", err)
	}
	if len(res.Results) != 1 {
		t.Errorf("results = %d, want 1", len(res.Results))
	}
}

func TestSearchLive_UpstreamFailureFallsBack(t *testing.T) {
	f := newFoodFixture()
	f.provider.err = apperror.Upstream("down", errors.New("timeout"))
	f.cache.put("pollo", product("1", "Pollo", 120))

	res, err := f.svc.SearchLive(context.Background(), "pollo")
	if err != nil {
		t.Fatalf("SearchLive() error = %v", err)
	}
	if res.Source != model.SourceExact {
		t.Errorf("Source = %q, want exact fallback", res.Source)
	}
	if f.cache.upserts != 0 {
		t.Error("cache must be untouched on upstream failure")
	}
}

func TestSearchLive_UpstreamFailureWithNothingLocal(t *testing.T) {
	f := newFoodFixture()
	f.provider.err = apperror.Upstream("down", errors.New("timeout"))

	_, err := f.svc.SearchLive(context.Background(), "quinoa")
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}

func TestStore_IsIdempotentUpsert(t *testing.T) {
	f := newFoodFixture()
	ctx := context.Background()
	results := []model.FoodProduct{product("1", "Pollo", 120)}

	for i := 0; i < 2; i++ {
		if err := f.svc.Store(ctx, " Pollo ", results); err != nil {
			t.Fatalf("Store() #%d error = %v", i+1, err)
		}
	}
	if len(f.cache.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(f.cache.entries))
	}

	if err := f.svc.Store(ctx, "pollo", []model.FoodProduct{product("2", "Pollo fritto", 250)}); err != nil {
		t.Fatalf("Store() replace error = %v", err)
	}
	if got := f.cache.entries["pollo"].Results[0].ID; got != "2" {
		t.Errorf("stored ID = %q, want replaced results", got)
	}
}

func TestStore_Validation(t *testing.T) {
	f := newFoodFixture()

	if err := f.svc.Store(context.Background(), "", []model.FoodProduct{}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty query error = %v", err)
	}
	if err := f.svc.Store(context.Background(), "pollo", nil); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("nil results error = %v", err)
	}
}

func TestLookupBarcode(t *testing.T) {
	f := newFoodFixture()
	f.provider.product = &model.FoodProduct{ID: "8001", Name: "Pasta"}

	p, err := f.svc.LookupBarcode(context.Background(), "8001")
	if err != nil || p.ID != "8001" {
		t.Fatalf("LookupBarcode() = %+v, %v", p, err)
	}

	for _, bad := range []string{"", "80a1", strings.Repeat(" ", 3)} {
		if _, err := f.svc.LookupBarcode(context.Background(), bad); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("LookupBarcode(%q) error = %v, want ErrValidation", bad, err)
		}
	}
	if f.provider.products != 1 {
		t.Errorf("provider calls = %d, want 1", f.provider.products)
	}
}
