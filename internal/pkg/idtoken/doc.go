// Package idtoken verifies identity tokens issued by an external identity
// provider and extracts the identity they assert.
//
// Two verifiers are provided:
//   - JWKS: RS256 tokens checked against a remote JSON Web Key Set, e.g.
//     Firebase ID tokens.
//   - HMAC: HS256 tokens signed with a shared secret, for local development.
//
// Both require exp and iat, check issuer and audience when configured, and
// reject tokens without an email claim.
package idtoken
