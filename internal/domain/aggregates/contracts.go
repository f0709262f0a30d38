package aggregates

import "strings"

// WriteTxOwnership says who opens the transaction around a write.
type WriteTxOwnership string

const (
	// WriteTxOwnedByAggregate: write methods open and commit their own transaction.
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
	// WriteTxOwnedByCaller: write methods join a transaction carried in dbctx.
	WriteTxOwnedByCaller WriteTxOwnership = "caller_owned"
)

// ReadPolicy says which reads an aggregate performs itself.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped: only the reads a write needs to decide its invariants.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
	// ReadPolicyTableRepoQueries: snapshot and audit reads stay on the table repos.
	ReadPolicyTableRepoQueries ReadPolicy = "table_repo_queries"
)

// Contract is the published write boundary of an aggregate.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	// LockScope names the row every write locks before touching state.
	LockScope string
	// Rejections lists the invariant_violation reasons writes may return.
	Rejections []string
	Notes      string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// AllowsRejection reports whether reason is one of the declared rejections.
func (c Contract) AllowsRejection(reason string) bool {
	reason = strings.TrimSpace(reason)
	for _, r := range c.Rejections {
		if r == reason {
			return true
		}
	}
	return false
}
