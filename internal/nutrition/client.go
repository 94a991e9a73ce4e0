// Package nutrition is the client for the Open Food Facts API, the external
// food database behind live search and barcode lookup.
//
// The API is slow and occasionally flaky. Every call is bounded by the
// client timeout and by the caller's context, and every failure comes back
// as apperror.ErrUpstream so the resolution engine can fall back to cached
// data instead of failing the request.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/metrics"
	"github.com/sakif/food-diary/internal/model"
)

const (
	DefaultBaseURL  = "https://it.openfoodfacts.org"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 15

	searchFields = "code,product_name,brands,nutriments,image_front_url,serving_quantity"
	userAgent    = "food-diary/1.0 (+https://github.com/sakif/food-diary)"

	kjPerKcal = 4.184
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

// Client talks to Open Food Facts. It is safe for concurrent use.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:   cfg.PageSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
		logger:     logger,
	}
}

// Search runs a free-text product search. Products without a name and
// without any energy value are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]model.FoodProduct, error) {
	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(c.pageSize))
	params.Set("cc", "it")
	params.Set("lc", "it")
	params.Set("fields", searchFields)

	var body struct {
		Products []offProduct `json:"products"`
	}
	status, err := c.getJSON(ctx, c.baseURL+"/cgi/search.pl?"+params.Encode(), &body)
	if err == nil && status != http.StatusOK {
		err = fmt.Errorf("unexpected status %d", status)
	}
	if err != nil {
		c.metrics.NutritionCall("search", "error")
		c.logger.Warn("nutrition search failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("Food database is unavailable", err)
	}

	results := make([]model.FoodProduct, 0, len(body.Products))
	for i, p := range body.Products {
		fp, ok := p.toFoodProduct(i)
		if !ok {
			continue
		}
		results = append(results, fp)
	}

	c.metrics.NutritionCall("search", "ok")
	return results, nil
}

// Product looks a barcode up. Returns apperror.ErrNotFound when Open Food
// Facts does not know it.
func (c *Client) Product(ctx context.Context, barcode string) (*model.FoodProduct, error) {
	var body struct {
		Status  int        `json:"status"`
		Product offProduct `json:"product"`
	}
	status, err := c.getJSON(ctx, c.baseURL+"/api/v0/product/"+url.PathEscape(barcode)+".json", &body)
	switch {
	case err == nil && (status == http.StatusNotFound || (status == http.StatusOK && body.Status == 0)):
		c.metrics.NutritionCall("product", "not_found")
		return nil, apperror.NotFound("product", barcode)
	case err == nil && status != http.StatusOK:
		err = fmt.Errorf("unexpected status %d", status)
	}
	if err != nil {
		c.metrics.NutritionCall("product", "error")
		c.logger.Warn("nutrition product lookup failed",
			slog.String("barcode", barcode),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("Food database is unavailable", err)
	}

	if body.Product.Code == "" {
		body.Product.Code = barcode
	}
	fp, ok := body.Product.toFoodProduct(0)
	if !ok {
		c.metrics.NutritionCall("product", "not_found")
		return nil, apperror.NotFound("product", barcode)
	}
	c.metrics.NutritionCall("product", "ok")
	return &fp, nil
}

// getJSON performs a GET and decodes a 200 body into v. Non-200 statuses are
// returned without decoding.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, nil
}

type offProduct struct {
	Code            string         `json:"code"`
	ProductName     string         `json:"product_name"`
	Brands          string         `json:"brands"`
	ImageFrontURL   string         `json:"image_front_url"`
	ServingQuantity flexFloat      `json:"serving_quantity"`
	Nutriments      map[string]any `json:"nutriments"`
}

// toFoodProduct maps an Open Food Facts product to the per-100g shape used
// everywhere else. ok is false for nameless products with no energy value.
func (p offProduct) toFoodProduct(index int) (model.FoodProduct, bool) {
	kcal := p.kcalPer100g()
	name := strings.TrimSpace(p.ProductName)
	if name == "" && kcal <= 0 {
		return model.FoodProduct{}, false
	}
	if name == "" {
		name = "Unknown Product"
	}

	id := p.Code
	if id == "" {
		id = "off-" + strconv.Itoa(index)
	}

	fp := model.FoodProduct{
		ID:       id,
		Name:     name,
		Brand:    firstBrand(p.Brands),
		Calories: math.Round(kcal),
		Macros: model.Macros{
			Proteins: round1(p.firstNutriment("proteins_100g", "proteins")),
			Carbs:    round1(p.firstNutriment("carbohydrates_100g", "carbohydrates")),
			Fats:     round1(p.firstNutriment("fat_100g", "fat")),
		},
		ImageURL: p.ImageFrontURL,
	}
	if p.ServingQuantity.ok && p.ServingQuantity.v > 0 {
		s := p.ServingQuantity.v
		fp.SuggestedServingSize = &s
	}
	return fp, true
}

// kcalPer100g takes the first positive energy figure, converting kJ when
// only that is reported.
func (p offProduct) kcalPer100g() float64 {
	if v := p.nutriment("energy-kcal_100g"); v > 0 {
		return v
	}
	if v := p.nutriment("energy-kcal"); v > 0 {
		return v
	}
	if v := p.nutriment("energy-kj_100g"); v > 0 {
		return v / kjPerKcal
	}
	if v := p.nutriment("energy_100g"); v > 0 {
		return v / kjPerKcal
	}
	return 0
}

// firstNutriment returns the first non-zero value among keys. Some products
// only report the unsuffixed per-portion keys.
func (p offProduct) firstNutriment(keys ...string) float64 {
	for _, k := range keys {
		if v := p.nutriment(k); v != 0 {
			return v
		}
	}
	return 0
}

// nutriment reads a value that Open Food Facts may send as a number or a string.
func (p offProduct) nutriment(key string) float64 {
	switch v := p.Nutriments[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// flexFloat accepts 30, 30.5 or "30".
type flexFloat struct {
	v  float64
	ok bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Free-text quantities like "1 slice" carry no usable number.
		return nil
	}
	f.v, f.ok = v, true
	return nil
}
