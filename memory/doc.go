// Package memory provides implementations of the core.MemoryStore contract
// used by the reflection stage for precedent lookup: an in-memory store for
// tests and single-process deployments, and a Qdrant-backed store for
// semantic retrieval (see the qdrant subpackage).
package memory
