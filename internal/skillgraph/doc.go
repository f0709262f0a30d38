// Package skillgraph holds the in-memory prerequisite graph of one course and
// the pure reachability queries over it.
//
// A Graph is a value: the server builds one per request from the canonical
// store, the editing client keeps one as its working copy. Every query method
// is side-effect free and never fails; malformed input such as references to
// unknown nodes or an already-cyclic edge set is tolerated by the walks.
//
// Edge direction follows the data model: node B listing A in Prerequisites
// means "A must be mastered before B". Ancestors walk toward prerequisites,
// descendants walk toward dependents.
package skillgraph
