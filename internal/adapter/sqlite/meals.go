package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"mealtrack/internal/domain"
)

// AddMealEntries writes all entries in one immediate transaction.
func (d *DB) AddMealEntries(ctx context.Context, entries []domain.MealEntry) (err error) {
	if len(entries) == 0 {
		return nil
	}

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO meal_record (user_key, day, meal_type, food_id, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	for i, e := range entries {
		if _, err = stmt.ExecContext(ctx, e.UserKey, e.Day, string(e.MealType), e.FoodID, formatTime(e.CreatedAt)); err != nil {
			return fmt.Errorf("insert meal entry %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// MealLinesForDay left-joins the user's entries for day with the catalog.
func (d *DB) MealLinesForDay(ctx context.Context, userKey, day string, mealType domain.MealType) ([]domain.MealLine, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT m.id, m.user_key, m.day, m.meal_type, m.food_id, m.created_at,
		       f.name, COALESCE(f.english_name, ''), f.calories, f.category, f.quantity
		FROM meal_record m
		LEFT JOIN food f ON f.name = m.food_id
		WHERE m.user_key = ? AND m.day = ? AND (? = '' OR m.meal_type = ?)
		ORDER BY m.id`,
		userKey, day, string(mealType), string(mealType))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.MealLine
	for rows.Next() {
		var (
			e         domain.MealEntry
			mt        string
			createdAt string
			name      sql.NullString
			english   string
			calories  sql.NullFloat64
			category  sql.NullString
			quantity  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserKey, &e.Day, &mt, &e.FoodID, &createdAt,
			&name, &english, &calories, &category, &quantity); err != nil {
			return nil, err
		}
		e.MealType = domain.MealType(mt)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}

		line := domain.MealLine{Entry: e}
		if name.Valid {
			line.Food = &domain.FoodRecord{
				Name:        name.String,
				EnglishName: english,
				Calories:    calories.Float64,
				Category:    category.String,
				Quantity:    quantity.String,
			}
		}
		out = append(out, line)
	}
	return out, rows.Err()
}
