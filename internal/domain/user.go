package domain

import "time"

// User represents an account known to the platform. Accounts are owned
// by the auth subsystem; this service only reads them and decrements
// credit on accepted submissions.
type User struct {
	ID        string
	Email     string
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCredit reports whether the user may submit another job.
func (u User) HasCredit() bool {
	return u.Credits > 0
}
