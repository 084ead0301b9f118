// Package license verifies and stores the offline activation code.
//
// An activation code is base64(data | "|" | HMAC-SHA256(secret, data)) where
// data is the JSON payload {machine, expire, api_key, quota}. Verification
// runs in a fixed order and stops at the first failure:
//
//  1. base64 decoding                 -> ErrFormat
//  2. split off the 32 byte signature -> ErrFormat
//  3. constant-time HMAC comparison   -> ErrSignature
//  4. payload decoding                -> ErrFormat
//  5. machine code comparison         -> ErrMachineMismatch
//  6. calendar-date expiry check      -> ErrExpired
//
// The Store keeps the raw code in a single file so that the payload can
// always be re-verified from durable state. The Issuer mints codes with the
// same secret for the vendor CLI.
package license
