package config

import (
	"io"
	"time"
)

// Config is the read-only view of runtime configuration.
//
// Keys are dotted paths (app.server.http.address). Missing keys yield the
// zero value of the requested type.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetUint(key string) uint
	GetFloat64(key string) float64

	// GetSecond reads an integer value as a number of seconds.
	GetSecond(key string) time.Duration
	// GetMinute reads an integer value as a number of minutes.
	GetMinute(key string) time.Duration

	// GetBinary reads a base64 encoded value. Invalid input yields nil.
	GetBinary(key string) []byte

	// GetArray reads a comma separated value (a,b,c) or a YAML list.
	// Elements are trimmed and empty elements dropped.
	GetArray(key string) []string
}
