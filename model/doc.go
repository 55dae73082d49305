// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside TaskMesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the pipeline stays decoupled from vendor SDKs. The planner,
// router, critic and reflector all consume models through Complete, which
// drains one Generate exchange to its final text.
package model
