// Package core provides the foundational message model used by chatflow:
//
//   - Roles (system, user, assistant, tool)
//   - Content parts as a closed tagged variant (text, URI-referenced media,
//     function call directives and function responses)
//   - Messages with structural equality and JSON serialization
//   - Small shared helpers (identifiers, the per-run turn limiter)
//
// The package has no knowledge of backends, tools or orchestration so that
// every other package can depend on it without cycles.
package core
