// Package session implements pulse's session lifecycle engine.
//
// A session is one user's presence on one machine, scoped to a UTC
// calendar day. Resolution never blindly inserts: it closes straggling
// active sessions, reopens today's session when one exists, and links a
// fresh session back to the previous one through the continuation
// fields. All of that happens in a single transaction per (user,
// machine) pair, serialized with an advisory transaction lock. A
// partial unique index on open sessions backstops the at-most-one
// invariant.
package session
