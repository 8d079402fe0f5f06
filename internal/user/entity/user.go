package entity

import "time"

// User is the owner of litigation cases, keyed by email.
// Credential holds the sealed mailbox credential; nil until the user has
// authorized mailbox access at least once.
type User struct {
	ID          int64     `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Credential  []byte    `db:"credential" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) HasCredential() bool { return len(u.Credential) > 0 }
