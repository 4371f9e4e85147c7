// Package audit buffers engine events and delivers them asynchronously to a
// caller-supplied [Sink]. It does not decide which events exist; the engine
// does.
package audit
