package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/thurmanmarka/fujiglide/internal/model"
)

// SettingsRepo persists the system_settings table. The settings.Cache sits
// in front of it; nothing else should read this table directly.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

// All returns every settings row.
func (r *SettingsRepo) All(ctx context.Context) ([]model.SystemSetting, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT key, value, value_type, description, editable FROM system_settings`)
	if err != nil {
		return nil, errors.Wrap(err, "query settings")
	}
	defer rows.Close()

	var out []model.SystemSetting
	for rows.Next() {
		var s model.SystemSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.Type, &s.Description, &s.Editable); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns one setting row.
func (r *SettingsRepo) Get(ctx context.Context, key string) (*model.SystemSetting, error) {
	var s model.SystemSetting
	err := r.pool.QueryRow(ctx,
		`SELECT key, value, value_type, description, editable FROM system_settings WHERE key = $1`,
		key).Scan(&s.Key, &s.Value, &s.Type, &s.Description, &s.Editable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "query setting")
	}
	return &s, nil
}

// Set upserts a setting value, keeping any existing type tag and
// description.
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO system_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return errors.Wrap(err, "set setting")
}
