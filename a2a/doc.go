// Package a2a provides transports for the agent-to-agent message protocol.
//
// The core.Transport interface splits delivery into two operations: Request
// (send and await the correlated RESPONSE) and Notify (fire-and-forget,
// including broadcast fan-out). This package ships an in-process transport
// for tests and single-process deployments; the nats subpackage provides a
// distributed transport over NATS request/reply and publish.
package a2a
