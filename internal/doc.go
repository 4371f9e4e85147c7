// Package internal holds helpers private to shopcore: credential and
// session id generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: orchestration behind each Engine operation
//   - rate: Redis fixed-window counters behind the login throttle
package internal
