// Package mfa encrypts second-factor material at rest.
//
// TOTP secrets are sealed with AES-256-GCM before they reach a durable store.
// Every ciphertext is bound to an account and a purpose through the GCM
// additional data, so a sealed secret copied onto another account row fails
// to open.
package mfa
