// Package harness runs YAML-defined scenarios against the approval
// workflow and captures a deterministic text transcript of every step.
//
// Scenarios seed a group, its members and work items, then drive a step
// list through the approval service: initiating requests, registering
// votes, advancing the clock, and deleting items out-of-band. The runner
// pins the clock and the request-id generator, so the transcript is
// byte-stable across runs and can be compared against golden files.
package harness
