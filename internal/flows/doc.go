// Package flows contains the orchestration behind each Engine operation.
//
// Each Run* function takes a typed dependency struct and returns a result
// carrying either the output or a failure kind the Engine maps onto its
// public errors, metrics and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import shopcore (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through dependency interfaces.
package flows
