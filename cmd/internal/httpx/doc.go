// Package httpx carries the JSON plumbing shared by the API handlers:
// the response envelope, strict request decoding, and the mapping from
// error kinds to HTTP status and stable machine codes.
package httpx
