// Package sqlite implements the audit ledger on SQLite. All writes are
// append-only except the models counter and the invocation response backfill.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/Official-Krish/ai-trading-zerodha/internal/interfaces"
	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
	"github.com/Official-Krish/ai-trading-zerodha/internal/types"
)

// Repository implements interfaces.Ledger using SQLite.
type Repository struct {
	db *sql.DB
}

var _ interfaces.Ledger = (*Repository)(nil)

// Open opens (creating if needed) the ledger database at path and ensures
// the schema exists. Pass ":memory:" for an ephemeral ledger in tests.
func Open(path string) (*Repository, error) {
	if path == "" {
		path = "./data/trading_agent.db"
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory %q: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger at %q: %w", path, err)
	}

	// SQLite serialises writers itself; a single connection avoids
	// SQLITE_BUSY churn from the driver side.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	logger.Info(context.Background(), "Ledger opened", "path", path)
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS models (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		invocation_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS invocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id INTEGER NOT NULL REFERENCES models(id),
		response TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tool_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invocation_id INTEGER NOT NULL REFERENCES invocations(id),
		tool_call_type TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id INTEGER NOT NULL REFERENCES models(id),
		net_value REAL NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_invocations_created_at ON invocations (created_at);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_invocation_id ON tool_calls (invocation_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON portfolio_snapshots (created_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// IncrementInvocationCount bumps the per-model counter, creating the model
// row on first use, and returns the updated row.
func (r *Repository) IncrementInvocationCount(ctx context.Context, modelName string) (types.ModelRow, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ModelRow{}, fmt.Errorf("failed to begin model counter tx: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
	INSERT INTO models (name, invocation_count) VALUES (?, 1)
	ON CONFLICT(name) DO UPDATE SET invocation_count = invocation_count + 1`
	if _, err := tx.ExecContext(ctx, upsert, modelName); err != nil {
		return types.ModelRow{}, fmt.Errorf("failed to increment invocation count for %q: %w", modelName, err)
	}

	var row types.ModelRow
	const query = `SELECT id, name, invocation_count FROM models WHERE name = ?`
	if err := tx.QueryRowContext(ctx, query, modelName).Scan(&row.ID, &row.Name, &row.InvocationCount); err != nil {
		return types.ModelRow{}, fmt.Errorf("failed to read model row for %q: %w", modelName, err)
	}

	if err := tx.Commit(); err != nil {
		return types.ModelRow{}, fmt.Errorf("failed to commit model counter tx: %w", err)
	}
	return row, nil
}

// CreateInvocation appends an invocation with an empty response and returns its id.
func (r *Repository) CreateInvocation(ctx context.Context, modelID int64) (int64, error) {
	const query = `INSERT INTO invocations (model_id) VALUES (?)`
	result, err := r.db.ExecContext(ctx, query, modelID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert invocation for model %d: %w", modelID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get invocation id: %w", err)
	}
	return id, nil
}

// UpdateInvocationResponse backfills the model's rationale text on an
// existing invocation row.
func (r *Repository) UpdateInvocationResponse(ctx context.Context, invocationID int64, text string) error {
	const query = `UPDATE invocations SET response = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, text, invocationID)
	if err != nil {
		return fmt.Errorf("failed to update invocation %d response: %w", invocationID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for invocation %d: %w", invocationID, err)
	}
	if n == 0 {
		return fmt.Errorf("invocation %d not found", invocationID)
	}
	return nil
}

// CreateToolCall appends the cycle's resolved tool call.
func (r *Repository) CreateToolCall(ctx context.Context, rec types.ToolCallRecord) error {
	const query = `
	INSERT INTO tool_calls (invocation_id, tool_call_type, metadata, order_id, error)
	VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		rec.InvocationID, string(rec.Type), rec.Metadata, rec.OrderID, rec.Error); err != nil {
		return fmt.Errorf("failed to insert tool call for invocation %d: %w", rec.InvocationID, err)
	}
	return nil
}

// CreatePortfolioSnapshot appends one portfolio-value sample, creating the
// model row if it has never been invoked.
func (r *Repository) CreatePortfolioSnapshot(ctx context.Context, modelName string, netValue float64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	const ensure = `INSERT INTO models (name, invocation_count) VALUES (?, 0) ON CONFLICT(name) DO NOTHING`
	if _, err := tx.ExecContext(ctx, ensure, modelName); err != nil {
		return fmt.Errorf("failed to ensure model row for %q: %w", modelName, err)
	}

	const insert = `
	INSERT INTO portfolio_snapshots (model_id, net_value)
	SELECT id, ? FROM models WHERE name = ?`
	if _, err := tx.ExecContext(ctx, insert, netValue, modelName); err != nil {
		return fmt.Errorf("failed to insert snapshot for %q: %w", modelName, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot tx: %w", err)
	}
	return nil
}

// RecentInvocations returns the newest invocations with their tool calls
// nested, newest invocation first and tool calls oldest first.
func (r *Repository) RecentInvocations(ctx context.Context, limit int) ([]types.InvocationView, error) {
	const invQuery = `
	SELECT i.id, m.name, i.response, i.created_at
	FROM invocations i
	JOIN models m ON m.id = i.model_id
	ORDER BY i.created_at DESC, i.id DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, invQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	views := make([]types.InvocationView, 0, limit)
	index := make(map[int64]int)
	ids := make([]any, 0, limit)
	for rows.Next() {
		var v types.InvocationView
		if err := rows.Scan(&v.ID, &v.ModelName, &v.Response, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		v.ToolCalls = []types.ToolCallView{}
		index[v.ID] = len(views)
		ids = append(ids, v.ID)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invocation rows: %w", err)
	}
	if len(views) == 0 {
		return views, nil
	}

	// One query for all nested tool calls rather than one per invocation.
	tcQuery := fmt.Sprintf(`
	SELECT invocation_id, tool_call_type, metadata, order_id, error, created_at
	FROM tool_calls
	WHERE invocation_id IN (%s)
	ORDER BY created_at ASC, id ASC`, placeholders(len(ids)))

	tcRows, err := r.db.QueryContext(ctx, tcQuery, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer tcRows.Close()

	for tcRows.Next() {
		var invID int64
		var tc types.ToolCallView
		if err := tcRows.Scan(&invID, &tc.ToolCallType, &tc.Metadata, &tc.OrderID, &tc.Error, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		if i, ok := index[invID]; ok {
			views[i].ToolCalls = append(views[i].ToolCalls, tc)
		}
	}
	if err := tcRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tool call rows: %w", err)
	}
	return views, nil
}

// PortfolioSeries returns every snapshot joined with its model, oldest first.
func (r *Repository) PortfolioSeries(ctx context.Context) ([]types.SnapshotView, error) {
	const query = `
	SELECT m.name, m.invocation_count, s.net_value, s.created_at
	FROM portfolio_snapshots s
	JOIN models m ON m.id = s.model_id
	ORDER BY s.created_at ASC, s.id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio snapshots: %w", err)
	}
	defer rows.Close()

	series := make([]types.SnapshotView, 0)
	for rows.Next() {
		var s types.SnapshotView
		if err := rows.Scan(&s.ModelName, &s.InvocationCount, &s.NetValue, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		series = append(series, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return series, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
