// Package hash provides keyed digests.
//
// Stores use it to derive opaque keys from identity keys so raw emails or
// subjects never appear in cache keys or broker payload routing.
package hash
