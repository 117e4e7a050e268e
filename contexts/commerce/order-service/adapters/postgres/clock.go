package postgresadapter

import "time"

// SystemClock backs the ports.Clock dependency in production wiring.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
