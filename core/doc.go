// Package core provides the foundational domain types, interfaces and execution
// contexts used by TaskMesh. It defines the core abstractions for:
//
//   - Plans and Steps (units of routed, executed and validated work)
//   - Routing decisions (tagged variants targeting tools, agents or teams)
//   - Teams and coordination strategies
//   - A2A messages (immutable agent-to-agent envelopes) and transports
//   - Validation and reflection results produced by the decision pipeline
//   - Pluggable stores for runs, plans, teams and reflection memory
//
// The package intentionally keeps implementation concerns (persistence,
// pipeline orchestration, concrete transports) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
