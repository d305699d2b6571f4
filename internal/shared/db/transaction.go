// Package db provides database utilities including transaction management.
package db

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// txKey is the context key for storing transaction.
type txKey struct{}

// Transactor runs fn inside one database transaction. Repositories called with the
// ctx passed to fn join that transaction.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionManager manages database transactions.
type TransactionManager struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewTransactionManager creates a new TransactionManager.
func NewTransactionManager(db *gorm.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// WithIsolation sets the isolation level used for new transactions.
// SQLite only supports the default level, so callers set this for MySQL.
func (tm *TransactionManager) WithIsolation(level sql.IsolationLevel) *TransactionManager {
	tm.opts = &sql.TxOptions{Isolation: level}
	return tm
}

// RunInTransaction executes fn within a database transaction. A nested call reuses
// the outer transaction instead of opening a savepoint.
func (tm *TransactionManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	var opts []*sql.TxOptions
	if tm.opts != nil {
		opts = append(opts, tm.opts)
	}
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	}, opts...)
}

// GetTx returns the transaction from context if available, otherwise returns the default DB.
func (tm *TransactionManager) GetTx(ctx context.Context) *gorm.DB {
	return GetTxFromContext(ctx, tm.db)
}

// GetTxFromContext returns the transaction from context if available.
// This is a standalone function for use in repositories.
func GetTxFromContext(ctx context.Context, defaultDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return defaultDB.WithContext(ctx)
}
