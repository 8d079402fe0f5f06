package entity

import "time"

type Status string

const (
	StatusDetected Status = "detected"
	StatusSent     Status = "sent"
	StatusPaid     Status = "paid"
	StatusError    Status = "error"
)

// Case is a dispute detected in a user's mailbox.
type Case struct {
	ID        int64     `db:"id" json:"id,string"`
	UserEmail string    `db:"user_email" json:"user_email"`
	Company   string    `db:"company" json:"company"`
	Amount    string    `db:"amount" json:"amount"`
	Law       string    `db:"law" json:"law"`
	Subject   string    `db:"subject" json:"subject"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (s Status) Valid() bool {
	switch s {
	case StatusDetected, StatusSent, StatusPaid, StatusError:
		return true
	}
	return false
}

// Resolved reports whether a case in this status blocks the same subject from
// being detected again.
func (s Status) Resolved() bool {
	return s == StatusSent || s == StatusPaid
}

// transitions lists the allowed moves. Nothing leads back to detected; a
// rescan deletes detected cases instead.
var transitions = map[Status][]Status{
	StatusDetected: {StatusSent, StatusError},
	StatusSent:     {StatusError, StatusPaid},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
