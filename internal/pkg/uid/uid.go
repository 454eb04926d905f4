// Package uid generates identifiers: UUID v7 strings for correlation ids and
// snowflake numbers for account ids.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}

// NumberID generates numeric identifiers.
type NumberID interface {
	Generate() int64
}
