// Package redisstore implements deskauth.TokenStore and deskauth.AttemptStore
// on Redis.
//
// # Key layout
//
// All keys share a configurable prefix (default "deskauth"):
//
//	{p}:rt:{hash}        refresh token hash record
//	{p}:rtu:{userID}     set of refresh token hashes issued to a user
//	{p}:su:{hash}        single-use token hash record
//	{p}:totp:{userID}    TOTP enrollment hash record
//	{p}:rc:{userID}      recovery codes: field = code hash, value = 0 or used-at millis
//	{p}:at:{id}          attempt hash (email, user_id, success, ip, ua, at)
//	{p}:ae:{email}       sorted set of every attempt id for an email, scored by millis
//	{p}:ah:{userID}      sorted set of attempt ids for a user, scored by millis
//	{p}:af:{email}       failed attempt ids inside the retention window
//
// Attempt hashes are never deleted. The af index is the only key that is
// trimmed, so it stays cheap to count.
//
// Check-and-mark operations (consume, revoke, recovery code use) run as Lua
// scripts so concurrent callers observe exactly one transition. Expiry is
// evaluated against the caller's clock; key TTLs only reclaim memory.
//
// The user-wide revocation script derives token keys from the index set and
// is therefore not safe on Redis Cluster without hash tags in the prefix.
package redisstore
