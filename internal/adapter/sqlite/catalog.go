package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mealtrack/internal/domain"
)

const foodColumns = "name, COALESCE(english_name, ''), calories, category, quantity"

// UpsertFoods inserts or replaces catalog records in one transaction.
func (d *DB) UpsertFoods(ctx context.Context, foods []domain.FoodRecord) (err error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO food (name, english_name, calories, category, quantity)
		VALUES (?, NULLIF(?, ''), ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			english_name = excluded.english_name,
			calories = excluded.calories,
			category = excluded.category,
			quantity = excluded.quantity`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	for _, f := range foods {
		if _, err = stmt.ExecContext(ctx, f.Name, f.EnglishName, f.Calories, f.Category, f.Quantity); err != nil {
			return fmt.Errorf("upsert %q: %w", f.Name, err)
		}
	}
	return tx.Commit()
}

// GetFoodByEnglishName returns the first record, by name, with the given
// English name.
func (d *DB) GetFoodByEnglishName(ctx context.Context, englishName string) (*domain.FoodRecord, error) {
	return scanFood(d.sql.QueryRowContext(ctx,
		"SELECT "+foodColumns+" FROM food WHERE english_name = ? ORDER BY name LIMIT 1", englishName))
}

// GetFoodByName returns the record with the given canonical name.
func (d *DB) GetFoodByName(ctx context.Context, name string) (*domain.FoodRecord, error) {
	return scanFood(d.sql.QueryRowContext(ctx,
		"SELECT "+foodColumns+" FROM food WHERE name = ?", name))
}

// ListFoodsBelowCalories lists records strictly under threshold.
func (d *DB) ListFoodsBelowCalories(ctx context.Context, threshold float64) ([]domain.FoodRecord, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+foodColumns+" FROM food WHERE calories < ? ORDER BY calories DESC, name", threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.FoodRecord
	for rows.Next() {
		var f domain.FoodRecord
		if err := rows.Scan(&f.Name, &f.EnglishName, &f.Calories, &f.Category, &f.Quantity); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFood(row *sql.Row) (*domain.FoodRecord, error) {
	var f domain.FoodRecord
	if err := row.Scan(&f.Name, &f.EnglishName, &f.Calories, &f.Category, &f.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}
