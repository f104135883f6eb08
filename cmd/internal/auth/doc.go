// Package auth is pulse's authentication framework.
//
// Given an incoming request it extracts candidate credentials in a fixed
// order (Bearer, X-API-Key, ServiceToken), validates them against the token
// store, and resolves the acting identity. Endpoints declare a required
// level; admin levels additionally check the roles carried in token data.
//
// The framework also owns refresh-token rotation and the lazy auto-create
// policy for usernames first seen from trusted agents.
package auth
