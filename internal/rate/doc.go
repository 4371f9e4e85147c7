// Package rate throttles repeated failed logins with Redis fixed-window
// counters: INCR, then EXPIRE on the first hit of a window.
//
// Keys are "<prefix>:rl:phone:<phone>" and "<prefix>:rl:ip:<ip>". A key
// that passes MaxAttempts blocks further attempts until it expires.
package rate
