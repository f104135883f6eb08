// Package token implements pulse's credential store.
//
// Four credential kinds share one table and one service: user tokens,
// service tokens, refresh tokens, and API keys. The database is the source
// of truth; an in-memory cache split by kind is populated at boot and
// refreshed on miss. Refresh tokens and API keys are recognized by their
// string prefix ("rt_", "apk_"); an unprefixed token whose data carries a
// service_id is a service token, anything else is a user token.
//
// A background sweep deletes expired rows at a configured interval and
// evicts the matching cache entries.
package token
