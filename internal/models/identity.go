package models

import "time"

// Credential is an identity record held by the built-in identity provider.
// Only the identity package reads or writes credentials.
type Credential struct {
	IdentityID   string // UUIDv7 string
	Email        string // Lower-cased
	PasswordHash []byte // bcrypt
	CreatedAt    time.Time
}
