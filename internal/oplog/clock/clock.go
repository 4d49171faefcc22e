// Package clock defines the Lamport-style logical clock carried by every
// entry. Monotonicity within a log is the log's responsibility, not the
// clock's — an entry merely carries the clock it was created with.
package clock

// Clock is a Lamport-style logical clock: the public key of the entry's
// author plus a non-negative logical time.
type Clock struct {
	ID   string `json:"id"`
	Time int64  `json:"time"`
}

// Tick returns a new Clock for the same author one logical step ahead.
func (c Clock) Tick() Clock {
	return Clock{ID: c.ID, Time: c.Time + 1}
}
