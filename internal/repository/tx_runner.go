package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// NewStores binds every repository to db, which may be the pool or a transaction.
func NewStores(db sqlx.ExtContext) Stores {
	return Stores{
		Products:   NewProductRepository(db),
		Inventory:  NewInventoryRepository(db),
		Signals:    NewSignalRepository(db),
		Promotions: NewPromotionRepository(db),
		Orders:     NewOrderRepository(db),
		Sessions:   NewSessionRepository(db),
		Customers:  NewCustomerRepository(db),
	}
}

// SQLTxRunner implements TxRunner on a sqlx pool.
type SQLTxRunner struct {
	db *sqlx.DB
}

// NewSQLTxRunner creates a new SQLTxRunner.
func NewSQLTxRunner(db *sqlx.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

// WithinTx begins a transaction, hands fn the stores bound to it and commits
// when fn succeeds.
func (r *SQLTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, NewStores(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("tx rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
