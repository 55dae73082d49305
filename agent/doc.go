// Package agent contains the single-agent execution pieces of TaskMesh:
//
//  1. Runner — the transport-backed executor the pipeline uses when a step is
//     routed to a named agent (resolve identity, send one request, fold the
//     reply into an execution result)
//  2. ModelAgent — a local model-backed agent that serves incoming requests,
//     usable as an in-process message handler or behind a remote transport
//  3. Instruction — a static-or-dynamic instruction source with template
//     rendering for per-task state
//
// Multi-agent coordination lives in the team package; this package is only
// concerned with one agent at a time.
package agent
