package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sakif/food-diary/internal/apperror"
	"github.com/sakif/food-diary/internal/model"
	"github.com/sakif/food-diary/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

func (db *DB) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, weight, height, age, gender, activity_level,
		        daily_kcal_goal, use_custom_goal, updated_at
		 FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(
		&p.UserID,
		&p.Weight,
		&p.Height,
		&p.Age,
		&p.Gender,
		&p.ActivityLevel,
		&p.DailyKcalGoal,
		&p.UseCustomGoal,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, apperror.Storage("sqlite: getting profile", err)
	}
	return &p, nil
}

// UpsertProfile writes the whole profile, replacing any previous values.
func (db *DB) UpsertProfile(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, weight, height, age, gender, activity_level,
		                            daily_kcal_goal, use_custom_goal, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     weight          = excluded.weight,
		     height          = excluded.height,
		     age             = excluded.age,
		     gender          = excluded.gender,
		     activity_level  = excluded.activity_level,
		     daily_kcal_goal = excluded.daily_kcal_goal,
		     use_custom_goal = excluded.use_custom_goal,
		     updated_at      = excluded.updated_at`,
		p.UserID,
		p.Weight,
		p.Height,
		p.Age,
		string(p.Gender),
		p.ActivityLevel,
		p.DailyKcalGoal,
		p.UseCustomGoal,
		p.UpdatedAt,
	)
	if err != nil {
		return apperror.Storage("sqlite: upserting profile", err)
	}
	return nil
}
