// Package app wires the engine together: it owns the run's logger,
// the descriptor loader, the destination-rule registry, and the phase
// sequence — walk, stage discovery, per-stage enumeration, scheduling,
// and cache persistence.
package app
