// Package core decides, for each requested (executable, dataset) pair, whether a
// measurement must be rebuilt and rerun or whether the artifact already on disk
// is still valid.
//
// # Components
//
// Registry: persisted mapping from executable name to the MD5 digest of the
// binary that last produced a validated artifact.
//
// Detector: recomputes an executable's digest and compares it to the registry;
// also checks that the artifact for a pair exists.
//
// Builder: compiles one executable before any freshness decision is made.
//
// Session: the decision state machine. Each pair goes PENDING -> SKIPPED or
// PENDING -> EXECUTED in exactly one step. Pairs are processed strictly in
// request order.
//
// # Invariants
//
//  1. A digest is recorded only after a successful run of that exact binary.
//  2. Freshness requires both a matching digest and an existing artifact.
//  3. force and prohibit are mutually exclusive and are rejected before any
//     build, run, or registry read.
package core
