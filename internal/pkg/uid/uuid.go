package uid

import "github.com/google/uuid"

// UUID generates time-ordered UUID v7 strings.
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a UUID v7, or a v4 if the clock source fails.
func (*UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
