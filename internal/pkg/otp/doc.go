// Package otp implements the TOTP (RFC 6238) second factor: secret
// generation, otpauth provisioning URIs, and drift-tolerant verification.
//
// Codes are 6 digits over HMAC-SHA1 with a 30 second step unless configured
// otherwise. Verification accepts the current step and skew steps on either
// side and compares in constant time.
package otp
