// internal/model/user.go
//
// User model: generic accessor plus credential verification.
//
// Every registration path goes through Schema.Wrap, so a handle that has
// the User model bound always carries VerifyCredentials.  Registry.Check
// asserts this at startup and on readiness probes.
package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both unknown email and wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User mirrors one row in the `users` table.
type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	DisplayName  string    `db:"display_name"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// CredentialVerifier is the behaviour the User model must expose.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*User, error)
}

// Users is the User model accessor.
type Users struct {
	*Accessor
	cost int
}

var _ CredentialVerifier = (*Users)(nil)

func newUsers(a *Accessor) *Users { return &Users{Accessor: a, cost: bcrypt.DefaultCost} }

// Create stores a new user with a bcrypt hash of password.
func (u *Users) Create(ctx context.Context, email, displayName, role, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return 0, err
	}
	return u.Insert(ctx, map[string]any{
		"email":         email,
		"password_hash": string(hash),
		"display_name":  displayName,
		"role":          role,
	})
}

// ByEmail fetches one user.
func (u *Users) ByEmail(ctx context.Context, email string) (*User, error) {
	var rec User
	const q = "SELECT * FROM `users` WHERE email = ? LIMIT 1"
	if err := u.db.GetContext(ctx, &rec, q, email); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetPassword replaces the stored hash for id.
func (u *Users) SetPassword(ctx context.Context, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return err
	}
	_, err = u.db.ExecContext(ctx,
		"UPDATE `users` SET password_hash = ? WHERE id = ?", string(hash), id)
	return err
}

// VerifyCredentials returns the user when password matches the stored hash.
func (u *Users) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	rec, err := u.ByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return rec, nil
}
