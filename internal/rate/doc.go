// Package rate provides a Redis-backed fixed-window counter. The fake API uses
// it to throttle refresh exchanges per credential the way production auth
// servers do.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. Keys are "<prefix>:rl:<key>".
package rate
