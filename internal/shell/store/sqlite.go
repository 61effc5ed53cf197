package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/skiffhq/skiff/internal/core/domain"
	"github.com/skiffhq/skiff/internal/core/flags"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Stack Operations
// =============================================================================

// stackRow represents a stack row in the database.
type stackRow struct {
	ID                   string `db:"id"`
	Name                 string `db:"name"`
	Flags                string `db:"flags"`
	Status               string `db:"status"`
	Exports              string `db:"exports"`
	EncryptedCredentials string `db:"encrypted_credentials"`
	ErrorMessage         string `db:"error_message"`
	CreatedAt            string `db:"created_at"`
	UpdatedAt            string `db:"updated_at"`
}

func (s *SQLiteStore) CreateStack(ctx context.Context, stack *domain.Stack) error {
	return createStack(ctx, s.db, stack)
}

func (s *SQLiteStore) GetStack(ctx context.Context, id string) (*domain.Stack, error) {
	return getStack(ctx, s.db, id)
}

func (s *SQLiteStore) GetStackByName(ctx context.Context, name string) (*domain.Stack, error) {
	return getStackByName(ctx, s.db, name)
}

func (s *SQLiteStore) UpdateStack(ctx context.Context, stack *domain.Stack) error {
	return updateStack(ctx, s.db, stack)
}

func (s *SQLiteStore) DeleteStack(ctx context.Context, id string) error {
	return deleteStack(ctx, s.db, id)
}

func (s *SQLiteStore) ListStacks(ctx context.Context, opts ListOptions) ([]domain.Stack, error) {
	return listStacks(ctx, s.db, opts)
}

// =============================================================================
// Shared Implementation
// =============================================================================

func createStack(ctx context.Context, exec executor, stack *domain.Stack) error {
	row, err := stackToRow(stack)
	if err != nil {
		return NewStoreError("CreateStack", "stack", stack.ID, "failed to serialize stack", ErrInvalidData)
	}

	query := `
		INSERT INTO stacks (
			id, name, flags, status, exports,
			encrypted_credentials, error_message, created_at, updated_at
		) VALUES (
			:id, :name, :flags, :status, :exports,
			:encrypted_credentials, :error_message, :created_at, :updated_at
		)`

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: stacks.id") {
			return NewStoreError("CreateStack", "stack", stack.ID, "stack with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: stacks.name") {
			return NewStoreError("CreateStack", "stack", stack.ID, "stack with this name already exists", ErrDuplicateName)
		}
		return NewStoreError("CreateStack", "stack", stack.ID, err.Error(), err)
	}

	return nil
}

func getStack(ctx context.Context, exec executor, id string) (*domain.Stack, error) {
	query := `SELECT * FROM stacks WHERE id = ?`

	var row stackRow
	err := exec.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetStack", "stack", id, "stack not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetStack", "stack", id, err.Error(), err)
	}

	return rowToStack(&row)
}

func getStackByName(ctx context.Context, exec executor, name string) (*domain.Stack, error) {
	query := `SELECT * FROM stacks WHERE name = ?`

	var row stackRow
	err := exec.GetContext(ctx, &row, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetStackByName", "stack", name, "stack not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetStackByName", "stack", name, err.Error(), err)
	}

	return rowToStack(&row)
}

func updateStack(ctx context.Context, exec executor, stack *domain.Stack) error {
	row, err := stackToRow(stack)
	if err != nil {
		return NewStoreError("UpdateStack", "stack", stack.ID, "failed to serialize stack", ErrInvalidData)
	}

	query := `
		UPDATE stacks SET
			name = :name,
			flags = :flags,
			status = :status,
			exports = :exports,
			encrypted_credentials = :encrypted_credentials,
			error_message = :error_message,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateStack", "stack", stack.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateStack", "stack", stack.ID, "stack not found", ErrNotFound)
	}

	return nil
}

func deleteStack(ctx context.Context, exec executor, id string) error {
	query := `DELETE FROM stacks WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteStack", "stack", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteStack", "stack", id, "stack not found", ErrNotFound)
	}

	return nil
}

func listStacks(ctx context.Context, exec executor, opts ListOptions) ([]domain.Stack, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM stacks ORDER BY created_at DESC LIMIT ? OFFSET ?`

	var rows []stackRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListStacks", "stack", "", err.Error(), err)
	}

	stacks := make([]domain.Stack, 0, len(rows))
	for _, row := range rows {
		stack, err := rowToStack(&row)
		if err != nil {
			return nil, err
		}
		stacks = append(stacks, *stack)
	}

	return stacks, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func stackToRow(stack *domain.Stack) (map[string]any, error) {
	flagsJSON, err := json.Marshal(stack.Flags)
	if err != nil {
		return nil, err
	}

	exports := stack.Exports
	if exports == nil {
		exports = map[string]string{}
	}
	exportsJSON, err := json.Marshal(exports)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"id":                    stack.ID,
		"name":                  stack.Name,
		"flags":                 string(flagsJSON),
		"status":                string(stack.Status),
		"exports":               string(exportsJSON),
		"encrypted_credentials": stack.EncryptedCredentials,
		"error_message":         stack.ErrorMessage,
		"created_at":            stack.CreatedAt.Format(time.RFC3339),
		"updated_at":            stack.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func rowToStack(row *stackRow) (*domain.Stack, error) {
	var f flags.FeatureFlags
	if err := json.Unmarshal([]byte(row.Flags), &f); err != nil {
		return nil, NewStoreError("rowToStack", "stack", row.ID, "failed to deserialize flags", ErrInvalidData)
	}

	exports := map[string]string{}
	if row.Exports != "" {
		if err := json.Unmarshal([]byte(row.Exports), &exports); err != nil {
			return nil, NewStoreError("rowToStack", "stack", row.ID, "failed to deserialize exports", ErrInvalidData)
		}
	}

	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToStack", "stack", row.ID, "failed to parse created_at", ErrInvalidData)
	}
	updatedAt, err := time.Parse(time.RFC3339, row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToStack", "stack", row.ID, "failed to parse updated_at", ErrInvalidData)
	}

	return &domain.Stack{
		ID:                   row.ID,
		Name:                 row.Name,
		Flags:                f,
		Status:               domain.StackStatus(row.Status),
		Exports:              exports,
		EncryptedCredentials: row.EncryptedCredentials,
		ErrorMessage:         row.ErrorMessage,
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
	}, nil
}
