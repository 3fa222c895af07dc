package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

const goalColumns = `id, account_id, name, target_amount, current_amount, auto_save_percent::text,
	auto_save_enabled, daily_deduction_cap, saved_today, saved_on, version, created_at, updated_at`

func scanGoal(row rowScanner) (*models.SavingsGoal, error) {
	var g models.SavingsGoal
	var pct string
	err := row.Scan(&g.ID, &g.AccountID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &pct,
		&g.AutoSaveEnabled, &g.DailyDeductionCap, &g.SavedToday, &g.SavedOn, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if g.AutoSavePercent, err = decimal.NewFromString(pct); err != nil {
		return nil, fmt.Errorf("goal %s auto-save percent: %w", g.ID, err)
	}
	return &g, nil
}

func writeGoal(ctx context.Context, tx pgx.Tx, w store.Write[*models.SavingsGoal]) error {
	g := w.Record
	if w.Insert {
		_, err := tx.Exec(ctx, `
			INSERT INTO savings_goals (id, account_id, name, target_amount, current_amount, auto_save_percent,
				auto_save_enabled, daily_deduction_cap, saved_today, saved_on, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13)
		`, g.ID, g.AccountID, g.Name, g.TargetAmount, g.CurrentAmount, g.AutoSavePercent.String(),
			g.AutoSaveEnabled, g.DailyDeductionCap, g.SavedToday, g.SavedOn, g.Version, g.CreatedAt, g.UpdatedAt)
		return err
	}
	return conditional(ctx, tx, `
		UPDATE savings_goals
		SET current_amount = $3, auto_save_enabled = $4, saved_today = $5, saved_on = $6, version = $7, updated_at = $8
		WHERE id = $1 AND version = $2
	`, g.ID, w.ExpectedVersion, g.CurrentAmount, g.AutoSaveEnabled, g.SavedToday, g.SavedOn, g.Version, g.UpdatedAt)
}

func (s *Store) GetGoal(ctx context.Context, id uuid.UUID) (*models.SavingsGoal, error) {
	return scanGoal(s.pool.QueryRow(ctx, `SELECT `+goalColumns+` FROM savings_goals WHERE id = $1`, id))
}

func (s *Store) ListGoals(ctx context.Context, accountID uuid.UUID) ([]*models.SavingsGoal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+goalColumns+` FROM savings_goals WHERE account_id = $1 ORDER BY created_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}
