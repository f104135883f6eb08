// Package identity holds pulse's principals: users and machines, plus the
// role/discipline authorization taxonomy.
//
// Users come into existence two ways: explicit registration, or lazily when
// the auth framework first sees a username reported by a trusted agent and
// auto-creation is enabled. Machines are resolved-or-created during agent
// handshake by their (hostname, unique hardware id) pair.
package identity
