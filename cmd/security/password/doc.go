// Package password implements Argon2id password hashing for pulse.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Verification decodes the parameters embedded in the hash but refuses
// settings wildly larger than the configured maximums, so an attacker-
// controlled hash string cannot drive pathological resource usage.
package password
