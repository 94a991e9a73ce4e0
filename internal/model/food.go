package model

import "time"

// Macros holds macronutrient grams.
type Macros struct {
	Proteins float64 `json:"proteins"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// FoodProduct is a search result. Values are per 100 g.
type FoodProduct struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Brand                string   `json:"brand,omitempty"`
	Calories             float64  `json:"calories"`
	Macros               Macros   `json:"macros"`
	ImageURL             string   `json:"imageUrl,omitempty"`
	SuggestedServingSize *float64 `json:"suggestedServingSize,omitempty"`
}

// SearchSource tags which resolution tier produced a result set.
type SearchSource string

const (
	SourceExact   SearchSource = "exact"
	SourcePrefix  SearchSource = "prefix"
	SourceHistory SearchSource = "history"
	SourceNone    SearchSource = "none"
	SourceAPI     SearchSource = "api"
)

// SearchCacheEntry maps a normalised query to the products last seen for it.
type SearchCacheEntry struct {
	Query     string        `json:"query"`
	Results   []FoodProduct `json:"results"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Resolution is the outcome of resolving a query. Results is nil on a miss,
// which serialises as JSON null.
type Resolution struct {
	Results []FoodProduct `json:"results"`
	Source  SearchSource  `json:"source"`
}

// CachedImage is an image body kept in the local image cache.
type CachedImage struct {
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"data"`
	FetchedAt   time.Time `json:"fetchedAt"`
}
