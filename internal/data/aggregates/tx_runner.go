package aggregates

import (
	"context"
	"fmt"
	"time"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// TxRunner is the transaction boundary of every skill graph write.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

// NewGormTxRunnerWithLockTimeout bounds, on Postgres, how long a transaction
// waits for a row lock such as the course head. A timed-out wait surfaces as
// SQLSTATE 55P03, which maps to a retryable error.
func NewGormTxRunnerWithLockTimeout(db *gorm.DB, lockTimeout time.Duration) TxRunner {
	return &gormTxRunner{db: db, lockTimeout: lockTimeout}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			ms := r.lockTimeout.Milliseconds()
			if ms < 1 {
				ms = 1
			}
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error; err != nil {
				return err
			}
		}
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
