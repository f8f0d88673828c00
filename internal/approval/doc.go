// Package approval implements the quorum-gated approval workflow for
// irreversible bulk deletions of work items in a shared group.
//
// An admin initiates a request, which snapshots the targeted items and
// attaches a pending record to the group aggregate. Members then approve;
// every vote re-derives live state (membership count, surviving items)
// before deciding between pending, executed, and no-op. The vote that
// reaches the ceil(N/3) threshold triggers the deletion executor
// synchronously, which tolerates per-item failure and always clears the
// pending record afterwards.
//
// # Concurrency
//
// Votes from different members may arrive in parallel. The only shared
// mutable resource is the pending-request record, and every mutation goes
// through a compare-and-swap on the aggregate revision with a bounded
// retry loop (see GroupStore). A losing writer re-reads and re-applies its
// single mutation, so concurrent votes are never silently dropped, and the
// unique write that crosses the threshold makes execution exactly-once.
//
// Collaborators (membership directory, work-item store, notifier) are
// injected as interfaces; notification delivery is best-effort and never
// affects the outcome of an operation.
package approval
