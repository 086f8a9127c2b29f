package model

import "time"

// User is a registered account holder.
type User struct {
	CreatedAt    time.Time
	ID           string
	Email        string
	PasswordHash string
	BusinessName string
	TaxID        string
}
