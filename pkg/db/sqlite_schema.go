package db

import (
	"context"
	"fmt"
)

// sqliteSchema mirrors the goose migrations for local runs and repository
// tests on SQLite. Enums become TEXT and jsonb becomes TEXT.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS ingredients (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  unit TEXT NOT NULL,
  price_per_unit NUMERIC NOT NULL DEFAULT 0,
  weighted_average_cost NUMERIC,
  current_stock NUMERIC NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS stock_transactions (
  id TEXT PRIMARY KEY,
  ingredient_id TEXT NOT NULL,
  transaction_type TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  unit_price NUMERIC,
  stock_before NUMERIC NOT NULL,
  stock_after NUMERIC NOT NULL,
  wac_before NUMERIC,
  wac_after NUMERIC,
  note TEXT,
  created_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS recipes (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  servings INTEGER NOT NULL,
  selling_price NUMERIC,
  labor_cost_override NUMERIC,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS recipe_ingredients (
  id TEXT PRIMARY KEY,
  recipe_id TEXT NOT NULL,
  ingredient_id TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  quantity NUMERIC NOT NULL,
  unit TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS production_batches (
  id TEXT PRIMARY KEY,
  recipe_id TEXT NOT NULL,
  status TEXT NOT NULL,
  actual_quantity NUMERIC NOT NULL DEFAULT 0,
  labor_cost NUMERIC NOT NULL DEFAULT 0,
  produced_at DATETIME NOT NULL,
  created_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS operational_costs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT 'other',
  amount NUMERIC NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS hpp_snapshots (
  id TEXT PRIMARY KEY,
  recipe_id TEXT NOT NULL,
  snapshot_date DATETIME NOT NULL,
  hpp_value NUMERIC NOT NULL,
  material_cost NUMERIC NOT NULL,
  labor_cost NUMERIC NOT NULL,
  operational_cost NUMERIC NOT NULL,
  total_cost NUMERIC NOT NULL,
  servings INTEGER NOT NULL,
  cost_breakdown TEXT NOT NULL,
  selling_price NUMERIC,
  margin_percentage NUMERIC,
  created_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS hpp_alerts (
  id TEXT PRIMARY KEY,
  recipe_id TEXT NOT NULL,
  snapshot_id TEXT,
  alert_type TEXT NOT NULL,
  severity TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  old_value NUMERIC NOT NULL,
  new_value NUMERIC NOT NULL,
  change_percentage NUMERIC NOT NULL,
  affected_components TEXT,
  is_read INTEGER NOT NULL DEFAULT 0,
  is_dismissed INTEGER NOT NULL DEFAULT 0,
  read_at DATETIME,
  dismissed_at DATETIME,
  created_at DATETIME NOT NULL,
  updated_at DATETIME
)`,
}

// EnsureSQLiteSchema creates the cost engine tables on a SQLite connection.
func (c *Client) EnsureSQLiteSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if err := c.Exec(ctx, stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
