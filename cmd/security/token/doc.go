// Package token provides the token-string primitives for pulse credentials.
//
// It is the single source of truth for how credential strings are minted
// and compared.
//
// Design goals:
//   - A token string is hex(SHA-256(payload || nonce)), so it carries no
//     recoverable information and is uniformly distributed.
//   - Refresh tokens and API keys prepend a stable type tag ("rt_", "apk_")
//     so the server can classify a presented credential without a lookup.
//   - Comparison is constant-time.
package token
