// Package aggregates holds the write contracts of the skill graph: inputs,
// results, error codes and the Contract each implementation publishes.
//
// Nothing here knows about gorm or HTTP. Implementations live in
// internal/data/aggregates.
package aggregates
