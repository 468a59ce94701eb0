package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// SQLite implements LedgerStore, CategoryStore and BudgetStore on a local
// SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath and runs
// migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const txColumns = `id, user_id, account_id, category_id, date_ns, description,
	amount, currency, type, tags, pair_id, exchange_rate, fee,
	exclude_from_analytics`

// CreateTransaction stores a transaction, generating an id when absent.
func (s *SQLite) CreateTransaction(ctx context.Context, tx domain.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	tags, err := json.Marshal(tx.Tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.AccountID, tx.CategoryID, tx.Date.UnixNano(),
		tx.Description, tx.Amount, tx.Currency, string(tx.Type), string(tags),
		tx.PairID, tx.ExchangeRate, tx.Fee, boolToInt(tx.ExcludeFromAnalytics))
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	return tx.ID, nil
}

// GetTransaction returns one transaction by id.
func (s *SQLite) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateTransaction applies a partial update. The recorded exchange rate
// is never part of a patch.
func (s *SQLite) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) error {
	var sets []string
	var args []any

	set := func(column string, v any) {
		sets = append(sets, column+" = ?")
		args = append(args, v)
	}

	if patch.AccountID != nil {
		set("account_id", *patch.AccountID)
	}
	if patch.CategoryID != nil {
		set("category_id", *patch.CategoryID)
	}
	if patch.Date != nil {
		set("date_ns", patch.Date.UnixNano())
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Amount != nil {
		set("amount", *patch.Amount)
	}
	if patch.Currency != nil {
		set("currency", *patch.Currency)
	}
	if patch.Type != nil {
		set("type", string(*patch.Type))
	}
	if patch.Tags != nil {
		tags, err := json.Marshal(*patch.Tags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}
		set("tags", string(tags))
	}
	if patch.Fee != nil {
		set("fee", *patch.Fee)
	}
	if patch.ExcludeFromAnalytics != nil {
		set("exclude_from_analytics", boolToInt(*patch.ExcludeFromAnalytics))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireOneRow(res)
}

// DeleteTransaction removes a transaction.
func (s *SQLite) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireOneRow(res)
}

// GetTransactionsByDateRange returns the user's transactions with
// start <= date <= end, ordered by date then id.
func (s *SQLite) GetTransactionsByDateRange(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE user_id = ? AND date_ns >= ? AND date_ns <= ?
		ORDER BY date_ns, id`,
		userID, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

// IsDuplicateHash reports whether (userID, source, hash) was imported
// before.
func (s *SQLite) IsDuplicateHash(ctx context.Context, userID, hash, source string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM import_records
		WHERE user_id = ? AND source = ? AND hash = ?`,
		userID, source, hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check duplicate hash: %w", err)
	}
	return n > 0, nil
}

// GetImportedHashes returns all hashes recorded for (userID, source).
func (s *SQLite) GetImportedHashes(ctx context.Context, userID, source string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash FROM import_records WHERE user_id = ? AND source = ?`,
		userID, source)
	if err != nil {
		return nil, fmt.Errorf("query imported hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = struct{}{}
	}
	return hashes, rows.Err()
}

// RecordImport stores a dedup record. The unique index converts the
// concurrent-import race into ErrDuplicateImport.
func (s *SQLite) RecordImport(ctx context.Context, userID, source, hash, transactionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_records (transaction_id, user_id, source, hash)
		VALUES (?, ?, ?, ?)`,
		transactionID, userID, source, hash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateImport
		}
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}

// DeleteImportRecord removes the dedup record for a transaction, if any.
func (s *SQLite) DeleteImportRecord(ctx context.Context, transactionID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM import_records WHERE transaction_id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("delete import record: %w", err)
	}
	return nil
}

// LinkPair sets pairID on both transactions inside one database
// transaction. Either both halves change or neither does.
func (s *SQLite) LinkPair(ctx context.Context, outID, inID, pairID string) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin link: %w", err)
	}
	defer dbTx.Rollback()

	for _, id := range []string{outID, inID} {
		res, err := dbTx.ExecContext(ctx, `
			UPDATE transactions SET pair_id = ? WHERE id = ? AND pair_id = ''`,
			pairID, id)
		if err != nil {
			return fmt.Errorf("link transaction %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("link transaction %s: %w", id, err)
		}
		if n != 1 {
			return ErrLinkConsistency
		}
	}
	return dbTx.Commit()
}

// UnlinkPair clears pairID from exactly the two transactions carrying it.
func (s *SQLite) UnlinkPair(ctx context.Context, userID, pairID string) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unlink: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx, `
		UPDATE transactions SET pair_id = '' WHERE user_id = ? AND pair_id = ?`,
		userID, pairID)
	if err != nil {
		return fmt.Errorf("unlink pair: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlink pair: %w", err)
	}
	if n != 2 {
		return ErrLinkConsistency
	}
	return dbTx.Commit()
}

// ListCategories returns the user's categories in creation order.
func (s *SQLite) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type FROM categories
		WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ); err != nil {
			return nil, err
		}
		c.Type = domain.TransactionType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory stores a category for the user.
func (s *SQLite) CreateCategory(ctx context.Context, c domain.Category, userID string) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, type, position)
		VALUES (?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM categories WHERE user_id = ?))`,
		c.ID, userID, c.Name, string(c.Type), userID)
	if err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	return c.ID, nil
}

// ListBudgets returns the user's budgets.
func (s *SQLite) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, amount, currency, period,
			start_date_ns, end_date_ns, alert_threshold
		FROM budgets WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []domain.Budget
	for rows.Next() {
		var b domain.Budget
		var period string
		var startNs int64
		var endNs sql.NullInt64
		if err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount,
			&b.Currency, &period, &startNs, &endNs, &b.AlertThreshold); err != nil {
			return nil, err
		}
		b.Period = domain.BudgetPeriod(period)
		b.StartDate = time.Unix(0, startNs)
		if endNs.Valid {
			end := time.Unix(0, endNs.Int64)
			b.EndDate = &end
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBudget stores a budget.
func (s *SQLite) CreateBudget(ctx context.Context, b domain.Budget) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	var endNs any
	if b.EndDate != nil {
		endNs = b.EndDate.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category_id, amount, currency,
			period, start_date_ns, end_date_ns, alert_threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.CategoryID, b.Amount, b.Currency, string(b.Period),
		b.StartDate.UnixNano(), endNs, b.AlertThreshold)
	if err != nil {
		return "", fmt.Errorf("insert budget: %w", err)
	}
	return b.ID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var dateNs int64
	var typ, tags string
	var exclude int

	err := row.Scan(&tx.ID, &tx.UserID, &tx.AccountID, &tx.CategoryID, &dateNs,
		&tx.Description, &tx.Amount, &tx.Currency, &typ, &tags, &tx.PairID,
		&tx.ExchangeRate, &tx.Fee, &exclude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	tx.Date = time.Unix(0, dateNs)
	tx.Type = domain.TransactionType(typ)
	tx.ExcludeFromAnalytics = exclude != 0
	if tags != "" && tags != "null" {
		if err := json.Unmarshal([]byte(tags), &tx.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &tx, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
