package entity

import "time"

// User is an account row in the `users` table. The password only ever lives
// here as a bcrypt hash; plaintext never survives the update path.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name,omitempty"`
	Email        string    `db:"email" json:"email,omitempty"`
	NationalID   string    `db:"national_id" json:"national_id,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Redacted returns a copy with sensitive attributes cleared. Restricted
// lookups and every HTTP response body go through this; the deny-list is
// national-id and password-hash.
func (u User) Redacted() User {
	u.NationalID = ""
	u.PasswordHash = ""
	return u
}
