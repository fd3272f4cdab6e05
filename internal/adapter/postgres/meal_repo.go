package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"mealtrack/internal/domain"
)

// AddMealEntries writes all entries in one transaction. Each touched
// (user, day, meal type) partition is locked with a transaction-scoped
// advisory lock first, so writers from other processes queue behind it.
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

	for _, key := range partitionKeys(entries) {
		if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1));", key); err != nil {
			return fmt.Errorf("lock partition: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("meal_record", "user_key", "day", "meal_type", "food_id", "created_at"))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err = stmt.ExecContext(ctx, e.UserKey, e.Day, string(e.MealType), e.FoodID, e.CreatedAt.UTC()); err != nil {
			_ = stmt.Close()
			return err
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("copy meal_record: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// MealLinesForDay left-joins the user's entries for day with the catalog.
func (d *DB) MealLinesForDay(ctx context.Context, userKey, day string, mealType domain.MealType) ([]domain.MealLine, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT m.id, m.user_key, to_char(m.day, 'YYYY-MM-DD'), m.meal_type, m.food_id, m.created_at,
		       f.name, COALESCE(f.english_name, ''), f.calories, f.category, f.quantity
		FROM meal_record m
		LEFT JOIN food f ON f.name = m.food_id
		WHERE m.user_key = $1 AND m.day = $2 AND ($3 = '' OR m.meal_type = $3)
		ORDER BY m.id;`,
		userKey, day, string(mealType))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.MealLine
	for rows.Next() {
		var (
			e         domain.MealEntry
			mt        string
			createdAt time.Time
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
		e.CreatedAt = createdAt.UTC()

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

// partitionKeys returns the distinct partitions of entries in a fixed order
// so concurrent batches acquire advisory locks consistently.
func partitionKeys(entries []domain.MealEntry) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, e := range entries {
		k := e.UserKey + "|" + e.Day + "|" + string(e.MealType)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
