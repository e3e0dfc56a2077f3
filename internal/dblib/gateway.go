package dblib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// Gateway owns the single database connection. Every statement runs in its
// own transaction: committed on success, rolled back on failure.
type Gateway struct {
	db      *sql.DB
	driver  string
	handler DatabaseHandler

	logger      *zap.Logger
	onStatement func(op string)
	onError     func(error)

	closeOnce sync.Once
	closeErr  error
}

type Option func(*Gateway)

// WithLogger sets the logger statements and failures are written to.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithStatementHook is called with a short description of every statement.
func WithStatementHook(fn func(op string)) Option {
	return func(g *Gateway) { g.onStatement = fn }
}

// WithErrorHook is called with every failed statement's error.
func WithErrorHook(fn func(error)) Option {
	return func(g *Gateway) { g.onError = fn }
}

// Connect establishes the connection. On failure no gateway is returned and
// the error is a *ConnectionError.
func Connect(ctx context.Context, cfg ConnectionConfig, opts ...Option) (*Gateway, error) {
	driver, err := cfg.DriverName()
	if err != nil {
		return nil, &ConnectionError{Driver: cfg.Driver, Err: err}
	}
	dbType, _ := cfg.DatabaseType()
	handler, err := NewDatabaseHandler(dbType)
	if err != nil {
		return nil, &ConnectionError{Driver: driver, Err: err}
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, &ConnectionError{Driver: driver, Err: err}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Driver: driver, Err: fmt.Errorf("failed to connect to database: %w", err)}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &ConnectionError{Driver: driver, Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	g := newGateway(db, driver, handler, opts...)
	g.logger.Info("connected", zap.String("target", cfg.Redacted()))
	return g, nil
}

// Open wraps an already opened *sql.DB. The gateway takes ownership of db.
func Open(db *sql.DB, dbType DatabaseType, opts ...Option) (*Gateway, error) {
	handler, err := NewDatabaseHandler(dbType)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return newGateway(db, dbType.String(), handler, opts...), nil
}

func newGateway(db *sql.DB, driver string, handler DatabaseHandler, opts ...Option) *Gateway {
	g := &Gateway{
		db:      db,
		driver:  driver,
		handler: handler,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Handler() DatabaseHandler { return g.handler }

// DB exposes the underlying pool for fixtures and diagnostics.
func (g *Gateway) DB() *sql.DB { return g.db }

// statementOp returns the leading keyword and target of stmt for breadcrumbs,
// never its values.
func statementOp(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ""
	}
	op := strings.ToUpper(fields[0])
	for i, f := range fields {
		switch strings.ToUpper(f) {
		case "FROM", "INTO", "UPDATE":
			if i+1 < len(fields) {
				return op + " " + fields[i+1]
			}
		}
	}
	return op
}

// Execute runs one parameterized statement in its own transaction.
// FetchOne returns at most one row; FetchNone returns only RowsAffected.
func (g *Gateway) Execute(ctx context.Context, stmt string, args []any, mode FetchMode) (*Result, error) {
	if g == nil || g.db == nil {
		return nil, &QueryExecutionError{Statement: stmt, Err: ErrNotConnected}
	}
	op := statementOp(stmt)
	if g.onStatement != nil {
		g.onStatement(op)
	}
	g.logger.Debug("execute", zap.String("op", op), zap.String("fetch", mode.String()), zap.Int("args", len(args)))
	debugLog("execute [%s] %s %v\n", mode, stmt, args)

	result, err := g.execute(ctx, stmt, args, mode)
	if err != nil {
		qerr := &QueryExecutionError{Statement: stmt, Code: errorCode(err), Err: err}
		g.logger.Error("statement failed",
			zap.String("statement", stmt),
			zap.String("fetch", mode.String()),
			zap.String("code", qerr.Code),
			zap.Error(err))
		if g.onError != nil {
			g.onError(qerr)
		}
		return nil, qerr
	}
	return result, nil
}

func (g *Gateway) execute(ctx context.Context, stmt string, args []any, mode FetchMode) (*Result, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	result := &Result{}
	switch mode {
	case FetchNone:
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if n, err := res.RowsAffected(); err == nil {
			result.RowsAffected = n
		}
	case FetchOne, FetchAll:
		limit := -1
		if mode == FetchOne {
			limit = 1
		}
		rows, err := tx.QueryContext(ctx, stmt, args...)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		columns, data, err := scanRows(rows, limit)
		closeErr := rows.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		result.Columns = columns
		result.Rows = data
		result.RowsAffected = int64(len(data))
	default:
		_ = tx.Rollback()
		return nil, fmt.Errorf("unknown fetch mode %v", mode)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// Columns returns the ordered column names of table, or an empty slice when
// the table is unknown or its metadata cannot be read.
func (g *Gateway) Columns(ctx context.Context, table string) []string {
	if g == nil || g.db == nil {
		return []string{}
	}
	columns, err := g.handler.LoadColumns(ctx, g.db, table)
	if err != nil {
		g.logger.Warn("column introspection failed", zap.String("table", table), zap.Error(err))
		if g.onError != nil {
			g.onError(fmt.Errorf("columns of %s: %w", table, err))
		}
		return []string{}
	}
	if columns == nil {
		return []string{}
	}
	return columns
}

// ForeignKeys returns the single-column foreign keys declared on table.
func (g *Gateway) ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	if g == nil || g.db == nil {
		return nil, ErrNotConnected
	}
	keys, err := g.handler.LoadForeignKeys(ctx, g.db, table)
	if err != nil {
		g.logger.Warn("foreign key introspection failed", zap.String("table", table), zap.Error(err))
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}
	return keys, nil
}

// Close releases the connection. It is safe to call on a nil gateway and
// more than once; only the first call closes.
func (g *Gateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	g.closeOnce.Do(func() {
		g.closeErr = g.db.Close()
		if g.closeErr != nil && !errors.Is(g.closeErr, sql.ErrConnDone) {
			g.logger.Warn("close failed", zap.Error(g.closeErr))
		}
		_ = g.logger.Sync()
	})
	return g.closeErr
}
