// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID           string    `db:"id"`
	UserName     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	PublicKey    string    `db:"public_key"`
	CreatedAt    time.Time `db:"created_at"`
}
