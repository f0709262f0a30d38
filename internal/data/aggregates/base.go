package aggregates

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/pkg/httpx"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"gorm.io/gorm"
)

const defaultRetryBackoff = 25 * time.Millisecond

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard

	// TxAttempts bounds how often a write transaction runs when it fails
	// transiently (serialization failure, deadlock, lock timeout). Values
	// below 2 mean a single attempt.
	TxAttempts   int
	RetryBackoff time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.TxAttempts < 1 {
		d.TxAttempts = 1
	}
	if d.RetryBackoff <= 0 {
		d.RetryBackoff = defaultRetryBackoff
	}
	return d
}

// executeWrite runs fn in a transaction, retrying transient failures up to
// TxAttempts, and reports the outcome to the hooks. fn must be safe to rerun:
// everything it wrote in a failed attempt has been rolled back.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}

	var mapped error
	backoff := deps.RetryBackoff
	for attempt := 1; ; attempt++ {
		mapped = MapError(op, deps.Runner.InTx(ctx, fn))
		if !domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			break
		}
		deps.Hooks.IncRetry(op)
		if attempt >= deps.TxAttempts || ctx.Err() != nil {
			break
		}
		if deps.Log != nil {
			deps.Log.Warn("aggregate write retrying", "op", op, "attempt", attempt, "error", mapped)
		}
		select {
		case <-ctx.Done():
		case <-time.After(httpx.JitterSleep(backoff)):
		}
		backoff *= 2
	}

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if aggErr, ok := domainagg.As(mapped); ok {
			switch aggErr.Code {
			case domainagg.CodeConflict:
				deps.Hooks.IncConflict(op)
			case domainagg.CodeInvariantViolation:
				deps.Hooks.IncRejection(op, aggErr.Reason)
			}
		}
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
