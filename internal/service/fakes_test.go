package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/notify"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================
//
// In-memory implementations of the repository interfaces. Each one mirrors
// the contract of the SQLite store closely enough for service rules to be
// tested without a database.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User // keyed by ID
	nextID int

	getErr      error
	setResetErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, u := range f.users {
		if u.Email == email {
			return apperror.DuplicateEmail()
		}
	}

	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.Email = email
	user.CreatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) byEmail(email string) *model.User {
	for _, u := range f.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (f *fakeUserRepo) MarkVerified(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(strings.ToLower(email))
	if u == nil {
		return apperror.NotFound("user", email)
	}
	u.IsVerified = true
	u.VerificationToken = nil
	return nil
}

func (f *fakeUserRepo) SetResetToken(ctx context.Context, userID, token string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setResetErr != nil {
		return f.setResetErr
	}
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.ResetToken = &token
	u.ResetTokenExpiry = &expiry
	return nil
}

func (f *fakeUserRepo) ConsumeResetToken(ctx context.Context, userID, token, passwordHash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || u.ResetToken == nil || *u.ResetToken != token || !u.ResetTokenExpiry.After(now) {
		return apperror.NotFound("reset token for user", userID)
	}
	u.PasswordHash = passwordHash
	u.ResetToken = nil
	u.ResetTokenExpiry = nil
	return nil
}

func (f *fakeUserRepo) UpdateDisplayName(ctx context.Context, userID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.DisplayName = name
	return nil
}

// fakeMailer records dispatched messages synchronously.
type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *fakeMailer) Dispatch(msg notify.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
}

func (m *fakeMailer) last() (notify.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return notify.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type fakeSearchCache struct {
	entries map[string]*model.SearchCacheEntry
	err     error

	upserts   int
	upsertErr error
}

func newFakeSearchCache() *fakeSearchCache {
	return &fakeSearchCache{entries: make(map[string]*model.SearchCacheEntry)}
}

func (f *fakeSearchCache) GetCachedSearch(ctx context.Context, query string) (*model.SearchCacheEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entries[query]
	if !ok {
		return nil, apperror.NotFound("search cache entry", query)
	}
	return e, nil
}

func (f *fakeSearchCache) GetShortestPrefixMatch(ctx context.Context, prefix string) (*model.SearchCacheEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var best *model.SearchCacheEntry
	for k, e := range f.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if best == nil || len(k) < len(best.Query) || (len(k) == len(best.Query) && k < best.Query) {
			best = e
		}
	}
	if best == nil {
		return nil, apperror.NotFound("search cache prefix", prefix)
	}
	return best, nil
}

func (f *fakeSearchCache) UpsertCachedSearch(ctx context.Context, e *model.SearchCacheEntry) error {
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	copied := *e
	f.entries[e.Query] = &copied
	return nil
}

func (f *fakeSearchCache) put(query string, results ...model.FoodProduct) {
	if results == nil {
		results = []model.FoodProduct{}
	}
	f.entries[query] = &model.SearchCacheEntry{Query: query, Results: results}
}

type fakeHistory struct {
	meals []model.MealEntry
}

func (f *fakeHistory) SearchMealHistory(ctx context.Context, term string, limit int) ([]model.MealEntry, error) {
	var out []model.MealEntry
	for _, m := range f.meals {
		if strings.Contains(strings.ToLower(m.Name), term) || strings.Contains(strings.ToLower(m.Brand), term) {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeProvider stands in for the nutrition API and counts calls.
type fakeProvider struct {
	results  []model.FoodProduct
	product  *model.FoodProduct
	err      error
	searches int
	products int
}

func (f *fakeProvider) Search(ctx context.Context, query string) ([]model.FoodProduct, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeProvider) Product(ctx context.Context, barcode string) (*model.FoodProduct, error) {
	f.products++
	if f.err != nil {
		return nil, f.err
	}
	if f.product == nil {
		return nil, apperror.NotFound("product", barcode)
	}
	return f.product, nil
}

type fakeMealRepo struct {
	mu     sync.Mutex
	meals  []model.MealEntry
	nextID int
	err    error
}

func (f *fakeMealRepo) ListMealsByDate(ctx context.Context, userID, date string) ([]model.MealEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []model.MealEntry{}
	for _, m := range f.meals {
		if m.UserID == userID && m.Date == date {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMealRepo) InsertMeal(ctx context.Context, entry *model.MealEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	entry.ID = fmt.Sprintf("meal-%d", f.nextID)
	entry.CreatedAt = time.Now()
	f.meals = append(f.meals, *entry)
	return nil
}

func (f *fakeMealRepo) DeleteMeal(ctx context.Context, userID, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.meals {
		if m.ID == id && m.UserID == userID {
			f.meals = append(f.meals[:i], f.meals[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type fakeProfileRepo struct {
	profiles map[string]*model.Profile
	err      error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (f *fakeProfileRepo) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	return p, nil
}

func (f *fakeProfileRepo) UpsertProfile(ctx context.Context, p *model.Profile) error {
	if f.err != nil {
		return f.err
	}
	copied := *p
	f.profiles[p.UserID] = &copied
	return nil
}

type fakeImageCache struct {
	images map[string]*model.CachedImage
	puts   int
}

func newFakeImageCache() *fakeImageCache {
	return &fakeImageCache{images: make(map[string]*model.CachedImage)}
}

func (f *fakeImageCache) GetImage(ctx context.Context, url string) (*model.CachedImage, error) {
	img, ok := f.images[url]
	if !ok {
		return nil, apperror.NotFound("image", url)
	}
	return img, nil
}

func (f *fakeImageCache) PutImage(ctx context.Context, img *model.CachedImage) error {
	f.puts++
	f.images[img.URL] = img
	return nil
}

func (f *fakeImageCache) ClearImages(ctx context.Context) (int, error) {
	n := len(f.images)
	f.images = make(map[string]*model.CachedImage)
	return n, nil
}

// failingHasher stands in for bcrypt when a test needs Hash to fail.
type failingHasher struct {
	err error
}

func (h failingHasher) Hash(string) (string, error) { return "", h.err }

func (h failingHasher) Verify(string, string) error { return h.err }
