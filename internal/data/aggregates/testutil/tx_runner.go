package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/skillgraph-backend/internal/data/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/platform/dbctx"
)

// InjectedTxRunner runs aggregate bodies without a database and fails on
// demand. The body gets a dbctx.Context with a nil Tx, so it suits tests
// that fail before any repo call or that stub the repos.
type InjectedTxRunner struct {
	mu sync.Mutex

	// FailBeforeBody fails every attempt before the body runs.
	FailBeforeBody error
	// FailFirst fails the first FailTimes attempts before the body runs.
	FailFirst error
	FailTimes int
	// FailCommit fails after a successful body.
	FailCommit error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	pre := r.FailBeforeBody
	if pre == nil && r.FailFirst != nil && r.BeginCalls <= r.FailTimes {
		pre = r.FailFirst
	}
	failCommit := r.FailCommit
	r.mu.Unlock()

	if pre != nil {
		r.count(&r.RollbackCalls)
		return pre
	}
	if fn != nil {
		if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
			r.count(&r.RollbackCalls)
			return err
		}
	}
	if failCommit != nil {
		r.count(&r.RollbackCalls)
		return failCommit
	}
	r.count(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
