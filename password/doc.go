// Package password implements Argon2id password hashing and the password
// strength policy applied at registration, reset, and change.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsUpgrade] reports hashes produced with weaker parameters than the
// current configuration so the caller can re-hash after a successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other deskauth package.
//   - Log plaintext passwords.
package password
