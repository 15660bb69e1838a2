// Package idempotency lets clients retry create requests safely.
//
// A client that loses the response to POST /plots or POST /plots/{id}/actions
// can resend it with the same Idempotency-Key header. The first request claims
// the key and records the ID it created; retries within the TTL get that
// record back instead of creating a second one. Keys are scoped by the server
// to the caller and route before they reach the Cache.
//
// State lives in process memory, so a restart forgets every key.
package idempotency
