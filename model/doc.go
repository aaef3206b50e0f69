// Package model defines the provider-agnostic Model Backend contract used by
// chatflow agents.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool call directives as core.FunctionCall parts
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight scripting for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement Model in sub packages so higher
// layers (flow, agent) remain decoupled from vendor SDKs. Every provider
// failure is reported as *BackendError.
package model
