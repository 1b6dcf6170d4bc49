package model

import (
	"strings"
	"time"
)

// User represents a credential record as stored in the `users` table.
// The json tags are omitted here because these structs are used by the
// repository and service layers; handlers define their own response types.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, normalized email address; the caller identity.
//	PasswordHash – bcrypt hash of the password.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
}

// NormalizeEmail lower-cases and trims an identity key so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
