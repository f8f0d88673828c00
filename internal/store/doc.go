// Package store provides SQLite-backed durable storage for the deletion
// approval workflow.
//
// The central table is the group aggregate: each group row carries its
// pending deletion request (as JSON) together with a monotonically
// increasing revision counter. Every mutation of the pending request is a
// compare-and-swap against that revision, which serializes concurrent
// read-modify-write cycles without holding database locks across
// application logic.
//
// The package also ships reference implementations of the membership
// directory and the work-item store backed by the same database, used by
// the operator CLI and local setups. Production deployments typically
// substitute their own directory and item backends.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
