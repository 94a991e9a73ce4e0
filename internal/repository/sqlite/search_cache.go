package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

var _ repository.SearchCacheRepository = (*DB)(nil)

// GetCachedSearch looks up an exact, already-normalised query.
func (db *DB) GetCachedSearch(ctx context.Context, query string) (*model.SearchCacheEntry, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT query, results, created_at FROM search_cache WHERE query = ?`, query)

	e, err := scanCacheEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("search cache entry", query)
		}
		return nil, apperror.Storage("sqlite: getting cached search", err)
	}
	return e, nil
}

// GetShortestPrefixMatch returns the shortest cached key that starts with
// prefix. Typing "poll" therefore reuses results cached for "pollo".
func (db *DB) GetShortestPrefixMatch(ctx context.Context, prefix string) (*model.SearchCacheEntry, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT query, results, created_at FROM search_cache
		 WHERE query LIKE ? ESCAPE '\'
		 ORDER BY LENGTH(query) ASC, query ASC
		 LIMIT 1`,
		likePattern(prefix)+"%",
	)

	e, err := scanCacheEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("search cache prefix", prefix)
		}
		return nil, apperror.Storage("sqlite: getting cached prefix", err)
	}
	return e, nil
}

// UpsertCachedSearch stores entry, fully replacing any previous results for
// the same query.
func (db *DB) UpsertCachedSearch(ctx context.Context, e *model.SearchCacheEntry) error {
	body, err := json.Marshal(e.Results)
	if err != nil {
		return apperror.Storage("sqlite: encoding cached results", err)
	}
	e.CreatedAt = time.Now().UTC()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO search_cache (query, results, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET
		     results    = excluded.results,
		     created_at = excluded.created_at`,
		e.Query, string(body), e.CreatedAt,
	)
	if err != nil {
		return apperror.Storage("sqlite: upserting cached search", err)
	}
	return nil
}

func scanCacheEntry(row rowScanner) (*model.SearchCacheEntry, error) {
	var (
		e    model.SearchCacheEntry
		body string
	)
	if err := row.Scan(&e.Query, &body, &e.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &e.Results); err != nil {
		return nil, err
	}
	return &e, nil
}
