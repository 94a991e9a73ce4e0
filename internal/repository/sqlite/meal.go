package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

var (
	_ repository.MealRepository      = (*DB)(nil)
	_ repository.MealHistorySearcher = (*DB)(nil)
)

// ListMealsByDate returns the user's entries for one day in insertion order.
// rowid grows monotonically on insert, which makes it a cheaper and stricter
// ordering key than created_at.
func (db *DB) ListMealsByDate(ctx context.Context, userID, date string) ([]model.MealEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, date, meal_type, name, brand, serving_size,
		        calories, proteins, carbs, fats, image_url, created_at
		 FROM meals
		 WHERE user_id = ? AND date = ?
		 ORDER BY rowid ASC`,
		userID, date,
	)
	if err != nil {
		return nil, apperror.Storage("sqlite: listing meals", err)
	}
	defer rows.Close()

	// Non-nil so an empty day encodes as [] rather than null.
	meals := []model.MealEntry{}
	for rows.Next() {
		var m model.MealEntry
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.Date,
			&m.MealType,
			&m.Name,
			&m.Brand,
			&m.ServingSize,
			&m.Calories,
			&m.Proteins,
			&m.Carbs,
			&m.Fats,
			&m.ImageURL,
			&m.CreatedAt,
		); err != nil {
			return nil, apperror.Storage("sqlite: scanning meal", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("sqlite: iterating meals", err)
	}

	return meals, nil
}

// InsertMeal stores a new entry, assigning ID and CreatedAt in place.
func (db *DB) InsertMeal(ctx context.Context, m *model.MealEntry) error {
	m.ID = xid.New().String()
	m.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO meals (id, user_id, date, meal_type, name, brand, serving_size,
		                    calories, proteins, carbs, fats, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.UserID,
		m.Date,
		string(m.MealType),
		m.Name,
		m.Brand,
		m.ServingSize,
		m.Calories,
		m.Proteins,
		m.Carbs,
		m.Fats,
		m.ImageURL,
		m.CreatedAt,
	)
	if err != nil {
		return apperror.Storage("sqlite: inserting meal", err)
	}
	return nil
}

// DeleteMeal removes the entry only if it belongs to userID.
// Deleting someone else's or a missing entry affects 0 rows and is not an error.
func (db *DB) DeleteMeal(ctx context.Context, userID, id string) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM meals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, apperror.Storage("sqlite: deleting meal", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.Storage("sqlite: reading rows affected", err)
	}
	return n, nil
}

// SearchMealHistory finds meals from all users whose name or brand contains
// term, case-insensitively. One row per (name, brand) pair, taken from the
// most recently logged entry, newest pairs first.
func (db *DB) SearchMealHistory(ctx context.Context, term string, limit int) ([]model.MealEntry, error) {
	pattern := "%" + likePattern(strings.ToLower(term)) + "%"

	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, brand, serving_size, calories, proteins, carbs, fats, image_url,
		        MAX(rowid) AS latest
		 FROM meals
		 WHERE LOWER(name) LIKE ? ESCAPE '\' OR LOWER(brand) LIKE ? ESCAPE '\'
		 GROUP BY name, brand
		 ORDER BY latest DESC
		 LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, apperror.Storage("sqlite: searching meal history", err)
	}
	defer rows.Close()

	var meals []model.MealEntry
	for rows.Next() {
		var (
			m      model.MealEntry
			latest int64
		)
		if err := rows.Scan(
			&m.Name,
			&m.Brand,
			&m.ServingSize,
			&m.Calories,
			&m.Proteins,
			&m.Carbs,
			&m.Fats,
			&m.ImageURL,
			&latest,
		); err != nil {
			return nil, apperror.Storage("sqlite: scanning meal history", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("sqlite: iterating meal history", err)
	}

	return meals, nil
}
